package ingestion

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/lifecycle"
	"trade-signal-lab/internal/normalize"
	"trade-signal-lab/internal/storage/memory"
)

func newTestHandler(ratePerSec float64) *WebhookHandler {
	lc := lifecycle.NewStore(memory.NewEventStore(), zerolog.Nop())
	ingestor := NewIngestor(normalize.New(time.Minute), lc, nil, zerolog.Nop())
	return NewWebhookHandler(ingestor, ratePerSec, 0, nil, zerolog.Nop())
}

func postPayload(t *testing.T, handler http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook/events", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func validPayload() normalize.Payload {
	return normalize.Payload{
		TradeID:   "EURUSD_1717243200_Bullish",
		EventType: "SIGNAL_CREATED",
		Timestamp: 1717243237512,
		Symbol:    "EURUSD",
		Direction: "Bullish",
	}
}

func TestWebhook_Accepted(t *testing.T) {
	handler := newTestHandler(0)

	rec := postPayload(t, handler, validPayload())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202 (%s)", rec.Code, rec.Body.String())
	}

	var resp webhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Status != "accepted" || resp.TradeID != "EURUSD_1717243200_Bullish" {
		t.Errorf("response: %+v", resp)
	}
}

func TestWebhook_RetransmitReturns200(t *testing.T) {
	handler := newTestHandler(0)

	if rec := postPayload(t, handler, validPayload()); rec.Code != http.StatusAccepted {
		t.Fatalf("first post: got %d", rec.Code)
	}

	// Retransmit with millisecond jitter inside the same second.
	p := validPayload()
	p.Timestamp = 1717243237900
	rec := postPayload(t, handler, p)
	if rec.Code != http.StatusOK {
		t.Fatalf("retransmit: got %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	var resp webhookResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "duplicate" {
		t.Errorf("status: got %q, want duplicate", resp.Status)
	}
}

func TestWebhook_MalformedReturns400(t *testing.T) {
	handler := newTestHandler(0)

	p := validPayload()
	p.EventType = "BOGUS"
	if rec := postPayload(t, handler, p); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown event type: got %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook/events", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid json: got %d, want 400", rec.Code)
	}
}

func TestWebhook_InvariantViolationReturns409(t *testing.T) {
	handler := newTestHandler(0)

	entry := validPayload()
	entry.EventType = "ENTRY"
	if rec := postPayload(t, handler, entry); rec.Code != http.StatusAccepted {
		t.Fatalf("ENTRY post: got %d", rec.Code)
	}

	cancel := validPayload()
	cancel.EventType = "CANCELLED"
	cancel.Timestamp = 1717243298000
	rec := postPayload(t, handler, cancel)
	if rec.Code != http.StatusConflict {
		t.Fatalf("CANCELLED after ENTRY: got %d, want 409 (%s)", rec.Code, rec.Body.String())
	}

	var resp webhookResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "invariant_violation" {
		t.Errorf("status: got %q", resp.Status)
	}
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(0)

	req := httptest.NewRequest(http.MethodGet, "/webhook/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: got %d, want 405", rec.Code)
	}
}

func TestWebhook_RateLimited(t *testing.T) {
	// Limiter with a burst of one: the second immediate request trips it.
	handler := newTestHandler(1)

	if rec := postPayload(t, handler, validPayload()); rec.Code != http.StatusAccepted {
		t.Fatalf("first post: got %d", rec.Code)
	}

	p := validPayload()
	p.Timestamp = 1717243300000
	rec := postPayload(t, handler, p)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second post: got %d, want 429", rec.Code)
	}
}
