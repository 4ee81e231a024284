package events

import (
	"context"
	"sync"
)

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Purchases() []TokensPurchased {
	var out []TokensPurchased
	for _, e := range r.Events() {
		if p, ok := e.(TokensPurchased); ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *Recorder) Sales() []TokensSold {
	var out []TokensSold
	for _, e := range r.Events() {
		if s, ok := e.(TokensSold); ok {
			out = append(out, s)
		}
	}
	return out
}
