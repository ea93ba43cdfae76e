// Package ingestion accepts raw alert payloads over HTTP and the relay
// stream and drives them through normalization into the event log.
package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/lifecycle"
	"trade-signal-lab/internal/normalize"
	"trade-signal-lab/internal/observability"
)

// Ingest sources, used as metric labels.
const (
	SourceWebhook = "webhook"
	SourceRelay   = "relay"
)

// Ingestor is the single entry point for raw payloads. Both transports
// converge here so dedup and invariant handling behave identically.
type Ingestor struct {
	normalizer *normalize.Normalizer
	lifecycle  *lifecycle.Store
	metrics    *observability.Metrics
	log        zerolog.Logger
}

// NewIngestor creates an ingestor. Metrics may be nil in tests.
func NewIngestor(n *normalize.Normalizer, store *lifecycle.Store, metrics *observability.Metrics, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		normalizer: n,
		lifecycle:  store,
		metrics:    metrics,
		log:        log.With().Str("component", "ingestion").Logger(),
	}
}

// Ingest normalizes and appends one payload. Deduplicated is a success
// outcome; the caller decides how to report it.
func (i *Ingestor) Ingest(ctx context.Context, source string, p *normalize.Payload) (lifecycle.AppendOutcome, error) {
	if i.metrics != nil {
		i.metrics.EventsReceived.WithLabelValues(source).Inc()
	}

	e, err := i.normalizer.Normalize(p)
	if err != nil {
		if i.metrics != nil {
			i.metrics.EventsRejected.WithLabelValues("malformed").Inc()
		}
		return "", err
	}

	outcome, err := i.lifecycle.Append(ctx, e)
	if err != nil {
		if i.metrics != nil {
			reason := "storage"
			if errors.Is(err, domain.ErrInvariantViolation) {
				reason = "invariant"
			}
			i.metrics.EventsRejected.WithLabelValues(reason).Inc()
		}
		return "", fmt.Errorf("append %s/%s: %w", e.TradeID, e.EventType, err)
	}

	if i.metrics != nil {
		switch outcome {
		case lifecycle.OutcomeAccepted:
			i.metrics.EventsAccepted.WithLabelValues(string(e.EventType)).Inc()
			i.metrics.LastSuccessfulIngestion.SetToCurrentTime()
		case lifecycle.OutcomeDeduplicated:
			i.metrics.EventsDeduplicated.WithLabelValues(string(e.EventType)).Inc()
		}
	}

	return outcome, nil
}
