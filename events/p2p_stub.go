//go:build !p2p

package events

import (
	"context"
	"errors"
	"log/slog"
)

// ErrP2PDisabled is returned when the binary was built without the p2p tag.
var ErrP2PDisabled = errors.New("p2p disabled (build with -tags p2p)")

// GossipPublisher is a no-op without the p2p build tag.
type GossipPublisher struct{}

func StartGossip(_ context.Context, _ []string, _ *slog.Logger) (*GossipPublisher, error) {
	return nil, ErrP2PDisabled
}

func (*GossipPublisher) Publish(context.Context, Event) error { return ErrP2PDisabled }

func (*GossipPublisher) Close() error { return nil }
