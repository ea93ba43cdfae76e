package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trade-signal-lab/internal/normalize"
)

// WSSourceConfig configures the relay stream client.
type WSSourceConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// HandshakeTimeout is timeout for the initial dial.
	HandshakeTimeout time.Duration
}

// DefaultWSSourceConfig returns default relay stream configuration.
func DefaultWSSourceConfig() WSSourceConfig {
	return WSSourceConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}

// WSSource consumes alert payloads from the relay's WebSocket stream and
// feeds them through the same ingest path as the webhook. A malformed
// frame is logged and dropped; the stream keeps going.
type WSSource struct {
	endpoint string
	config   WSSourceConfig
	ingestor *Ingestor
	log      zerolog.Logger
}

// NewWSSource creates a relay stream source. A nil config uses defaults.
func NewWSSource(endpoint string, config *WSSourceConfig, ingestor *Ingestor, log zerolog.Logger) *WSSource {
	cfg := DefaultWSSourceConfig()
	if config != nil {
		cfg = *config
	}
	return &WSSource{
		endpoint: endpoint,
		config:   cfg,
		ingestor: ingestor,
		log:      log.With().Str("component", "relay").Logger(),
	}
}

// Run connects to the relay and consumes frames until ctx is cancelled.
// Connection failures reconnect with exponential backoff; the delay
// resets after a healthy session.
func (s *WSSource) Run(ctx context.Context) error {
	delay := s.config.ReconnectDelay

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.log.Warn().Err(err).Dur("retry_in", delay).Msg("relay stream dropped")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.config.MaxReconnectDelay {
			delay = s.config.MaxReconnectDelay
		}
	}
}

// consume runs one connection session: dial, ping loop, read loop.
func (s *WSSource) consume(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.config.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	s.log.Info().Str("endpoint", s.endpoint).Msg("relay stream connected")

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.pingLoop(sessionCtx, conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		s.handleFrame(ctx, data)
	}
}

func (s *WSSource) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *WSSource) handleFrame(ctx context.Context, data []byte) {
	var p normalize.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		s.log.Warn().Err(err).Msg("undecodable relay frame dropped")
		return
	}

	outcome, err := s.ingestor.Ingest(ctx, SourceRelay, &p)
	if err != nil {
		// Rejections are terminal for the frame, not the stream.
		s.log.Warn().Err(err).Str("trade_id", p.TradeID).Msg("relay payload rejected")
		return
	}

	s.log.Debug().
		Str("trade_id", p.TradeID).
		Str("event_type", p.EventType).
		Str("outcome", string(outcome)).
		Msg("relay payload ingested")
}
