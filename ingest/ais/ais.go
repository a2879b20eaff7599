// Package ais is the AIS/NMEA ingest adapter: it turns a line-oriented
// !AIVDM/!AIVDO feed (TCP or any io.Reader) into vessel.PositionReport
// values for the state engine. The tracking core never touches the wire
// protocol; this package is the one collaborator that does.
package ais

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	goais "github.com/BertoldVdb/go-ais"
	"github.com/adrianmo/go-nmea"

	"github.com/projectqai/brovakt/vessel"
)

// Sink receives decoded position reports. The orchestrator's Ingest method
// satisfies this interface.
type Sink interface {
	Ingest(mmsi string, report vessel.PositionReport) error
}

// messageFragment accumulates a multi-part !AIVDM sentence until every
// fragment has arrived.
type messageFragment struct {
	fragments map[int64][]byte
	numParts  int64
	timestamp time.Time
}

// Reader decodes NMEA/AIS lines from a stream and forwards position reports
// to a Sink. One Reader instance is not safe for concurrent ReadLoop calls;
// the fragment store is per-connection.
type Reader struct {
	logger  *slog.Logger
	decoder *goais.Codec

	mu        sync.Mutex
	fragments map[int64]*messageFragment
}

// NewReader builds a Reader. logger may be nil, in which case ingest errors
// are dropped silently; bad input is never fatal.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	decoder := goais.CodecNew(false, false)
	decoder.DropSpace = true
	return &Reader{
		logger:    logger,
		decoder:   decoder,
		fragments: make(map[int64]*messageFragment),
	}
}

// ReadLoop scans r line by line until ctx is cancelled or r is exhausted,
// forwarding every decoded position report to sink.
func (rd *Reader) ReadLoop(ctx context.Context, r io.Reader, sink Sink) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rd.processLine(scanner.Text(), sink)
	}
	return scanner.Err()
}

// DialAndRun connects to addr over TCP and feeds ReadLoop, reconnecting with
// backoff on connection loss until ctx is cancelled.
func (rd *Reader) DialAndRun(ctx context.Context, addr string, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
		if err != nil {
			rd.logger.Error("ais: failed to connect", "addr", addr, "error", err)
			if !sleepOrDone(ctx, 5*time.Second) {
				return ctx.Err()
			}
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		err = rd.ReadLoop(ctx, conn, sink)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rd.logger.Warn("ais: connection closed, reconnecting", "addr", addr, "error", err)
		if !sleepOrDone(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (rd *Reader) processLine(line string, sink Sink) {
	if idx := strings.IndexByte(line, '!'); idx >= 0 {
		line = line[idx:]
	} else if idx := strings.IndexByte(line, '$'); idx >= 0 {
		line = line[idx:]
	} else {
		return
	}

	s, err := nmea.Parse(line)
	if err != nil {
		rd.logger.Debug("ais: unparseable sentence", "error", err)
		return
	}

	vdm, ok := s.(nmea.VDMVDO)
	if !ok {
		return
	}

	rd.mu.Lock()
	payload, complete := rd.reassemble(vdm)
	rd.mu.Unlock()
	if !complete {
		return
	}

	packet := rd.decoder.DecodePacket(payload)
	if packet == nil {
		return
	}
	rd.dispatchPacket(packet, sink)
}

// reassemble accumulates multi-part payloads; caller must hold rd.mu.
func (rd *Reader) reassemble(vdm nmea.VDMVDO) ([]byte, bool) {
	if vdm.NumFragments <= 1 {
		return vdm.Payload, true
	}

	frag, exists := rd.fragments[vdm.MessageID]
	if !exists {
		frag = &messageFragment{fragments: make(map[int64][]byte), numParts: vdm.NumFragments, timestamp: time.Now()}
		rd.fragments[vdm.MessageID] = frag
	}
	frag.fragments[vdm.FragmentNumber] = vdm.Payload

	if int64(len(frag.fragments)) < vdm.NumFragments {
		return nil, false
	}

	var full []byte
	for i := int64(1); i <= vdm.NumFragments; i++ {
		part, ok := frag.fragments[i]
		if !ok {
			return nil, false
		}
		full = append(full, part...)
	}
	delete(rd.fragments, vdm.MessageID)
	return full, true
}

func (rd *Reader) dispatchPacket(packet goais.Packet, sink Sink) {
	report, ok := toPositionReport(packet)
	if !ok {
		return
	}
	if err := sink.Ingest(report.MMSI, report); err != nil {
		rd.logger.Error("ais: sink rejected report", "mmsi", report.MMSI, "error", err)
	}
}

// toPositionReport extracts the position fields from whichever AIS message
// type decoded; static-data and non-position messages are ignored.
func toPositionReport(packet goais.Packet) (vessel.PositionReport, bool) {
	switch msg := packet.(type) {
	case goais.PositionReport:
		if msg.UserID == 0 {
			return vessel.PositionReport{}, false
		}
		return vessel.PositionReport{
			MMSI:   fmt.Sprintf("%d", msg.UserID),
			Lat:    float64(msg.Latitude),
			Lon:    float64(msg.Longitude),
			SOG:    float64(msg.Sog),
			HasSOG: msg.Sog < 102.3,
			COG:    float64(msg.Cog),
			HasCOG: msg.Cog < 360,
		}, true
	case goais.StandardClassBPositionReport:
		if msg.UserID == 0 {
			return vessel.PositionReport{}, false
		}
		return vessel.PositionReport{
			MMSI:   fmt.Sprintf("%d", msg.UserID),
			Lat:    float64(msg.Latitude),
			Lon:    float64(msg.Longitude),
			SOG:    float64(msg.Sog),
			HasSOG: msg.Sog < 102.3,
			COG:    float64(msg.Cog),
			HasCOG: msg.Cog < 360,
		}, true
	case goais.ExtendedClassBPositionReport:
		if msg.UserID == 0 {
			return vessel.PositionReport{}, false
		}
		name := strings.TrimSpace(msg.Name)
		return vessel.PositionReport{
			MMSI:   fmt.Sprintf("%d", msg.UserID),
			Lat:    float64(msg.Latitude),
			Lon:    float64(msg.Longitude),
			SOG:    float64(msg.Sog),
			HasSOG: msg.Sog < 102.3,
			COG:    float64(msg.Cog),
			HasCOG: msg.Cog < 360,
			Name:   name,
		}, true
	default:
		return vessel.PositionReport{}, false
	}
}
