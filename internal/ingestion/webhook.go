package ingestion

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/lifecycle"
	"trade-signal-lab/internal/normalize"
	"trade-signal-lab/internal/observability"
)

// maxWebhookBody caps inbound payload size. Alert payloads are tiny;
// anything near this limit is garbage.
const maxWebhookBody = 64 << 10

// WebhookHandler serves POST /webhook/events. Response codes follow the
// webhook contract: 202 accepted, 200 deduplicated retransmit, 400
// malformed, 409 invariant violation, 429 rate limited.
type WebhookHandler struct {
	ingestor *Ingestor
	limiter  *rate.Limiter
	metrics  *observability.Metrics
	log      zerolog.Logger
}

// NewWebhookHandler creates the webhook handler. ratePerSec <= 0
// disables rate limiting.
func NewWebhookHandler(ingestor *Ingestor, ratePerSec float64, burst int, metrics *observability.Metrics, log zerolog.Logger) *WebhookHandler {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		if burst <= 0 {
			burst = int(ratePerSec)
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return &WebhookHandler{
		ingestor: ingestor,
		limiter:  limiter,
		metrics:  metrics,
		log:      log.With().Str("component", "webhook").Logger(),
	}
}

type webhookResponse struct {
	Status  string `json:"status"`
	TradeID string `json:"tradeId,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		if h.metrics != nil {
			h.metrics.WebhookLatency.Observe(time.Since(start).Seconds())
		}
	}()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, webhookResponse{Status: "error", Error: "POST only"})
		return
	}

	if h.limiter != nil && !h.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, webhookResponse{Status: "rate_limited"})
		return
	}

	var p normalize.Payload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err := dec.Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Status: "malformed", Error: err.Error()})
		return
	}

	outcome, err := h.ingestor.Ingest(r.Context(), SourceWebhook, &p)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedEvent):
			writeJSON(w, http.StatusBadRequest, webhookResponse{
				Status: "malformed", TradeID: p.TradeID, Error: err.Error(),
			})
		case errors.Is(err, domain.ErrInvariantViolation):
			writeJSON(w, http.StatusConflict, webhookResponse{
				Status: "invariant_violation", TradeID: p.TradeID, Error: err.Error(),
			})
		default:
			h.log.Error().Err(err).Str("trade_id", p.TradeID).Msg("webhook append failed")
			writeJSON(w, http.StatusInternalServerError, webhookResponse{
				Status: "error", TradeID: p.TradeID, Error: "internal error",
			})
		}
		return
	}

	switch outcome {
	case lifecycle.OutcomeDeduplicated:
		writeJSON(w, http.StatusOK, webhookResponse{Status: "duplicate", TradeID: p.TradeID})
	default:
		writeJSON(w, http.StatusAccepted, webhookResponse{Status: "accepted", TradeID: p.TradeID})
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
