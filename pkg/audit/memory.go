package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryLogger keeps audit events in process memory. It backs the service
// when no database is configured.
type MemoryLogger struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryLogger creates an empty MemoryLogger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log records an audit event.
func (l *MemoryLogger) Log(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Query returns matching events, newest first.
func (l *MemoryLogger) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for _, e := range slices.Backward(l.events) {
		if matches(e, filter) {
			out = append(out, e)
		}
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Event{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Close is a no-op.
func (*MemoryLogger) Close() error {
	return nil
}

func matches(e Event, f QueryFilter) bool {
	switch {
	case f.ID != "" && e.ID != f.ID:
		return false
	case f.UserID != "" && e.UserID != f.UserID:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.Target != "" && e.Target != f.Target:
		return false
	case f.Success != nil && e.Success != *f.Success:
		return false
	case f.StartTime != nil && e.Timestamp.Before(*f.StartTime):
		return false
	case f.EndTime != nil && e.Timestamp.After(*f.EndTime):
		return false
	}
	return true
}


// NoopLogger discards all events. It is used when auditing is disabled.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(context.Context, Event) error { return nil }

// Query returns no events.
func (NoopLogger) Query(context.Context, QueryFilter) ([]Event, error) { return []Event{}, nil }

// Close does nothing.
func (NoopLogger) Close() error { return nil }

// Verify interface compliance.
var (
	_ Logger = (*MemoryLogger)(nil)
	_ Logger = NoopLogger{}
)
