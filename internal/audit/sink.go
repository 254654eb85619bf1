package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/cory-johannsen/loot/internal/game/loot"
)

// Sink is a loot.EventSink that writes every placement to a Writer.
// Write failures are logged and counted; they never reach the engine.
type Sink struct {
	w       *Writer
	logger  *zap.Logger
	written atomic.Int64
	failed  atomic.Int64
}

// NewSink returns a Sink writing under dir with file prefix.
//
// Precondition: logger must be non-nil.
func NewSink(dir, prefix string, logger *zap.Logger) *Sink {
	return &Sink{w: NewWriter(dir, prefix), logger: logger}
}

// Record implements loot.EventSink.
func (s *Sink) Record(ev loot.SpawnEvent) {
	if err := s.w.Write(ev.Time, ev); err != nil {
		// First failure at error level, the rest at debug.
		if s.failed.Add(1) == 1 {
			s.logger.Error("spawn audit write failed", zap.Error(err))
		} else {
			s.logger.Debug("spawn audit write failed", zap.Error(err))
		}
		return
	}
	s.written.Add(1)
}

// Written returns the number of recorded events.
func (s *Sink) Written() int64 { return s.written.Load() }

// Failed returns the number of events that could not be written.
func (s *Sink) Failed() int64 { return s.failed.Load() }

// Close flushes the current log file.
func (s *Sink) Close() error {
	return s.w.Close()
}

// ReadFile decodes every spawn event in one audit file.
//
// Postcondition: Returns events in write order, or an error naming the
// first undecodable line.
func ReadFile(path string) ([]loot.SpawnEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads zstd compressed JSON lines of spawn events from r.
func Decode(r io.Reader) ([]loot.SpawnEvent, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("audit: starting decompressor: %w", err)
	}
	defer dec.Close()

	var out []loot.SpawnEvent
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var ev loot.SpawnEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return out, fmt.Errorf("audit: line %d: %w", line, err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("audit: reading: %w", err)
	}
	return out, nil
}

// Tally counts events by reason and by resource id.
func Tally(events []loot.SpawnEvent) (byReason map[loot.Reason]int, byResource map[string]int) {
	byReason = make(map[loot.Reason]int)
	byResource = make(map[string]int)
	for _, ev := range events {
		byReason[ev.Reason]++
		byResource[ev.ResourceID]++
	}
	return byReason, byResource
}
