// Package orchestrator wires the state engine, coordinator, and generator
// together: ingest a report, update vessel state, consult the coordinator,
// regenerate the bridge text, and publish it if it changed.
package orchestrator

import (
	"sync"
	"time"

	"github.com/projectqai/brovakt/bridgetext"
	"github.com/projectqai/brovakt/coordinator"
	"github.com/projectqai/brovakt/metrics"
	"github.com/projectqai/brovakt/stateengine"
	"github.com/projectqai/brovakt/vessel"
)

// Publisher emits the bridge text to whatever downstream surface consumes
// it (display, trigger cards). Kept as a narrow interface so the
// orchestrator doesn't depend on any specific egress transport, mirroring
// the host-platform display/trigger-card integration out of this module.
type Publisher interface {
	Publish(message string) error
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(message string) error

func (f PublisherFunc) Publish(message string) error { return f(message) }

// MoveClassifier reduces a state-engine movement classification to the
// coordinator's PositionAnalysis. Kept as an injectable function so the
// orchestrator doesn't need to import stateengine's internal classifier.
type MoveClassifier func(mmsi string, snap vessel.Snapshot) coordinator.PositionAnalysis

// Orchestrator owns the ingest-to-publish pipeline.
type Orchestrator struct {
	engine      *stateengine.Engine
	coordinator *coordinator.Coordinator
	generator   *bridgetext.Generator
	publisher   Publisher
	classify    MoveClassifier
	now         func() time.Time

	mu            sync.Mutex
	lastPublished string
	hasPublished  bool
	deferTimer    *time.Timer
}

// New builds an Orchestrator from its already-constructed collaborators.
// classify may be nil, in which case every update is treated as a normal
// move for coordination purposes.
func New(engine *stateengine.Engine, coord *coordinator.Coordinator, generator *bridgetext.Generator, publisher Publisher, classify MoveClassifier) *Orchestrator {
	if classify == nil {
		classify = func(string, vessel.Snapshot) coordinator.PositionAnalysis {
			return coordinator.PositionAnalysis{Class: coordinator.MoveNormal}
		}
	}
	return &Orchestrator{
		engine:      engine,
		coordinator: coord,
		generator:   generator,
		publisher:   publisher,
		classify:    classify,
		now:         time.Now,
	}
}

// Ingest processes one position report end to end: state update, coordinator
// consultation, regeneration, and publish-if-changed.
func (o *Orchestrator) Ingest(mmsi string, report vessel.PositionReport) error {
	snap, ok := o.engine.Update(mmsi, report)
	if !ok {
		return nil
	}

	analysis := o.classify(mmsi, snap)
	decision := o.coordinator.CoordinatePositionUpdate(mmsi, analysis)
	if !decision.ShouldProceed {
		return nil
	}

	return o.regenerateAndPublish()
}

// Remove drops a vessel from both the engine and the coordinator, cancelling
// every timer tied to it.
func (o *Orchestrator) Remove(mmsi, reason string) error {
	o.engine.Remove(mmsi, reason)
	o.coordinator.RemoveVessel(mmsi)
	return o.regenerateAndPublish()
}

// Cleanup prunes coordinator bookkeeping; call periodically.
func (o *Orchestrator) Cleanup() {
	o.coordinator.Cleanup()
}

func (o *Orchestrator) regenerateAndPublish() error {
	now := o.now()
	vessels := o.engine.All()

	mmsis := make([]string, len(vessels))
	for i, v := range vessels {
		mmsis[i] = v.MMSI
	}

	if debounce := o.coordinator.ShouldDebounceBridgeText(mmsis); debounce.ShouldDebounce {
		metrics.IncDebounced()
		o.deferPublish(debounce.RemainingTime)
		return nil
	}

	message, consumed := o.generator.Generate(vessels, now)
	metrics.ObserveGenerateLatency(o.now().Sub(now).Nanoseconds())
	for _, mmsi := range consumed {
		o.engine.ConsumeHold(mmsi)
	}

	return o.publishIfChanged(message)
}

// deferPublish arms a one-shot retry at the end of the debounce window. A
// retry already pending absorbs any number of further suppressed updates,
// so a burst collapses into a single regeneration once the window lapses.
func (o *Orchestrator) deferPublish(remaining time.Duration) {
	if remaining <= 0 {
		remaining = coordinator.DefaultDebounceWindow
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.deferTimer != nil {
		return
	}
	o.deferTimer = time.AfterFunc(remaining, func() {
		o.mu.Lock()
		o.deferTimer = nil
		o.mu.Unlock()
		_ = o.regenerateAndPublish()
	})
}

// Shutdown cancels any pending deferred publish.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.deferTimer != nil {
		o.deferTimer.Stop()
		o.deferTimer = nil
	}
}

func (o *Orchestrator) publishIfChanged(message string) error {
	o.mu.Lock()
	unchanged := o.hasPublished && o.lastPublished == message
	if !unchanged {
		o.lastPublished = message
		o.hasPublished = true
	}
	o.mu.Unlock()

	if unchanged {
		return nil
	}
	metrics.IncPublished()
	return o.publisher.Publish(message)
}
