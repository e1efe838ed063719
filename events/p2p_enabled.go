//go:build p2p

package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	host "github.com/libp2p/go-libp2p/core/host"
	peer "github.com/libp2p/go-libp2p/core/peer"
	quic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	ma "github.com/multiformats/go-multiaddr"
)

const topicEvents = "flagstore/events/v1"

// ErrP2PDisabled is never returned when built with the p2p tag.
var ErrP2PDisabled = errors.New("p2p disabled")

// GossipPublisher broadcasts events over libp2p gossipsub and logs the
// events it hears from peers.
type GossipPublisher struct {
	host   host.Host
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	cancel context.CancelFunc
	logger *slog.Logger
}

// StartGossip starts a QUIC libp2p host, dials bootstrap peers and joins the
// event topic.
func StartGossip(ctx context.Context, bootstrap []string, logger *slog.Logger) (*GossipPublisher, error) {
	h, err := libp2p.New(
		libp2p.Transport(quic.NewTransport),
		libp2p.ListenAddrStrings("/ip4/0.0.0.0/udp/0/quic-v1"),
	)
	if err != nil {
		return nil, fmt.Errorf("start libp2p host: %w", err)
	}
	for _, a := range h.Addrs() {
		logger.Info("p2p listening", "addr", fmt.Sprintf("%s/p2p/%s", a, h.ID()))
	}

	for _, bs := range bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil {
			logger.Warn("p2p bootstrap failed", "addr", bs, "error", err)
			continue
		}
		logger.Info("p2p connected", "addr", bs)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("start gossipsub: %w", err)
	}
	topic, err := ps.Join(topicEvents)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("join %s: %w", topicEvents, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topicEvents, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	g := &GossipPublisher{host: h, topic: topic, sub: sub, cancel: cancel, logger: logger}
	go g.receive(runCtx)
	return g, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (g *GossipPublisher) receive(ctx context.Context) {
	for {
		msg, err := g.sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == g.host.ID() {
			continue
		}
		ev, err := decodeEvent(msg.Data)
		if err != nil {
			continue
		}
		g.logger.Info("peer event", "from", msg.ReceivedFrom.String(), "contract", ev.Contract, "entry", ev.Entry, "height", ev.Height)
	}
}

func (g *GossipPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return g.topic.Publish(ctx, data)
}

func (g *GossipPublisher) Close() error {
	g.cancel()
	g.sub.Cancel()
	if err := g.topic.Close(); err != nil {
		g.logger.Debug("close topic", "error", err)
	}
	return g.host.Close()
}
