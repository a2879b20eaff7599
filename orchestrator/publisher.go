package orchestrator

import "log/slog"

// LogPublisher publishes the bridge text by logging it at Info level. It's
// the default egress when no host-platform display/trigger-card integration
// is wired up.
type LogPublisher struct {
	Logger *slog.Logger
}

// NewLogPublisher builds a LogPublisher. logger may be nil, in which case
// the default slog logger is used.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{Logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(message string) error {
	p.Logger.Info("bridge text", "module", "bridgetext", "text", message)
	return nil
}
