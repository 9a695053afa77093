/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus mirrors in-process events onto NATS so external tools
// (dashboards, loggers, automation) can follow the daemon without speaking
// the control protocol.
package eventbus

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/events"
)

// SubjectPrefix is prepended to every mirrored event type.
const SubjectPrefix = "bragi.events."

// mirroredEvents is every event type the daemon publishes.
var mirroredEvents = []events.EventType{
	events.EventNowPlaying,
	events.EventSpecialEmitted,
	events.EventSpecialGenerated,
	events.EventPlaylistSwitch,
	events.EventPlaylistReload,
	events.EventPlaylistShuffle,
	events.EventTagsReload,
	events.EventWeatherFetch,
	events.EventWatchdogProbe,
	events.EventWatchdogRestart,
}

// Message is the wire form of one mirrored event.
type Message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// Mirror forwards bus events to NATS. Losing the NATS connection never
// affects the daemon; the client buffers and reconnects on its own.
type Mirror struct {
	conn   *nats.Conn
	bus    *events.Bus
	nodeID string
	logger zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMirror connects to NATS and returns a mirror ready to start. A
// connection failure is returned so the caller can decide to run without
// mirroring.
func NewMirror(url string, bus *events.Bus, logger zerolog.Logger) (*Mirror, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Mirror{
		conn:   conn,
		bus:    bus,
		nodeID: nodeID(),
		logger: logger.With().Str("component", "eventbus").Logger(),
	}, nil
}

// Start subscribes to every event type and begins forwarding.
func (m *Mirror) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	for _, eventType := range mirroredEvents {
		sub := m.bus.Subscribe(eventType)
		m.wg.Add(1)
		go m.forward(ctx, eventType, sub)
	}
	m.logger.Info().Str("server", m.conn.ConnectedUrl()).Msg("event mirror started")
}

// Close stops forwarding and drains the connection.
func (m *Mirror) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if err := m.conn.Drain(); err != nil {
		m.logger.Warn().Err(err).Msg("draining NATS connection")
	}
}

func (m *Mirror) forward(ctx context.Context, eventType events.EventType, sub events.Subscriber) {
	defer m.wg.Done()
	defer m.bus.Unsubscribe(eventType, sub)

	subject := SubjectPrefix + string(eventType)
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(Message{
				EventType: eventType,
				Payload:   payload,
				Timestamp: time.Now(),
				NodeID:    m.nodeID,
				MessageID: uuid.NewString(),
			})
			if err != nil {
				m.logger.Warn().Err(err).Str("event", string(eventType)).Msg("marshalling event")
				continue
			}
			if err := m.conn.Publish(subject, data); err != nil {
				m.logger.Debug().Err(err).Str("subject", subject).Msg("publishing event")
			}
		}
	}
}

func nodeID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.NewString()
	}
	return hostname + "-" + uuid.NewString()[:8]
}
