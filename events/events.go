// Package events publishes what successful contract calls logged.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/soden46/hyperlux-flagstore/contract"
)

// Event describes one successful instantiate or execute call.
type Event struct {
	Contract   string               `json:"contract"`
	Entry      string               `json:"entry"`
	Sender     string               `json:"sender,omitempty"`
	Height     uint64               `json:"height"`
	Attributes []contract.Attribute `json:"attributes,omitempty"`
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// LogPublisher writes events to a logger.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, ev Event) error {
	attrs := make([]any, 0, 8+2*len(ev.Attributes))
	attrs = append(attrs, "contract", ev.Contract, "entry", ev.Entry, "height", ev.Height)
	if ev.Sender != "" {
		attrs = append(attrs, "sender", ev.Sender)
	}
	for _, a := range ev.Attributes {
		attrs = append(attrs, a.Key, a.Value)
	}
	p.Logger.InfoContext(ctx, "contract event", attrs...)
	return nil
}

// Multi fans an event out to several publishers and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recorder keeps every event it is given.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func encodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

func decodeEvent(b []byte) (Event, error) {
	var ev Event
	return ev, json.Unmarshal(b, &ev)
}
