package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"trade-signal-lab/internal/corpus"
	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/lifecycle"
	"trade-signal-lab/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
	Gap   any    `json:"gap,omitempty"`
}

// handleHealth serves the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// summaryRow is the wire shape of one lifecycle summary row.
type summaryRow struct {
	TradeID   string `json:"tradeId"`
	Symbol    string `json:"symbol"`
	Direction string `json:"direction,omitempty"`
	Status    string `json:"status"`
	Session   string `json:"session,omitempty"`

	EntryPrice *float64 `json:"entryPrice,omitempty"`
	StopLoss   *float64 `json:"stopLoss,omitempty"`

	SignalAt int64  `json:"signalAt,omitempty"`
	EntryAt  int64  `json:"entryAt,omitempty"`
	ExitAt   int64  `json:"exitAt,omitempty"`
	ExitWith string `json:"exitReason,omitempty"`

	NoBeMfeR      *float64 `json:"noBeMfeR,omitempty"`
	BeMfeR        *float64 `json:"beMfeR,omitempty"`
	MaeGlobalR    *float64 `json:"maeGlobalR,omitempty"`
	BeTriggered   *bool    `json:"beTriggered,omitempty"`
	MetricsSource string   `json:"metricsSource,omitempty"`

	EventCount int `json:"eventCount"`
}

type summaryPage struct {
	Rows   []summaryRow `json:"rows"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// handleSummary serves GET /api/v1/lifecycle/summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := lifecycle.SummaryQuery{
		Symbol:       r.URL.Query().Get("symbol"),
		StatusFilter: domain.TradeStatus(r.URL.Query().Get("status")),
		Limit:        intParam(r, "limit", 0),
		Offset:       intParam(r, "offset", 0),
	}

	page, err := s.lifecycle.Summary(r.Context(), s.excursions, q)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	out := summaryPage{Total: page.Total, Limit: page.Limit, Offset: page.Offset, Rows: []summaryRow{}}
	for _, row := range page.Rows {
		t := row.Trade
		out.Rows = append(out.Rows, summaryRow{
			TradeID:       t.TradeID,
			Symbol:        t.Symbol,
			Direction:     string(t.Direction),
			Status:        string(t.Status),
			Session:       t.Session,
			EntryPrice:    t.EntryPrice,
			StopLoss:      t.StopLoss,
			SignalAt:      t.SignalAt,
			EntryAt:       t.EntryAt,
			ExitAt:        t.ExitAt,
			ExitWith:      string(t.ExitReason),
			NoBeMfeR:      row.NoBeMfeR,
			BeMfeR:        row.BeMfeR,
			MaeGlobalR:    row.MaeGlobalR,
			BeTriggered:   row.BeTriggered,
			MetricsSource: row.MetricsSource,
			EventCount:    t.EventCount,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// handleHistoryPoint serves GET /api/v1/history/point.
func (s *Server) handleHistoryPoint(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	ts, ok := int64Param(r, "ts")
	if symbol == "" || !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbol and ts are required"})
		return
	}

	result, err := s.corpus.PointInTime(r.Context(), symbol, ts, includeParam(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleHistoryRange serves GET /api/v1/history/range.
func (s *Server) handleHistoryRange(w http.ResponseWriter, r *http.Request) {
	symbol, start, end, ok := windowParams(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbol, start and end are required"})
		return
	}

	result, err := s.corpus.Range(r.Context(), symbol, start, end, includeParam(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type gateResponse struct {
	Gate     string `json:"gate"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail,omitempty"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`

	MissingRanges []corpus.MissingRange `json:"missingRanges,omitempty"`
}

// handleQualityDeterminism serves GET /api/v1/quality/determinism.
func (s *Server) handleQualityDeterminism(w http.ResponseWriter, r *http.Request) {
	symbol, start, end, ok := windowParams(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbol, start and end are required"})
		return
	}

	gate, err := s.corpus.DeterminismGate(r.Context(), symbol, start, end)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	s.recordGate(gate.Gate, gate.Passed)
	writeJSON(w, http.StatusOK, gateResponse{
		Gate: gate.Gate, Passed: gate.Passed, Detail: gate.Detail,
		Expected: gate.Expected, Actual: gate.Actual,
	})
}

// handleQualityAlignment serves GET /api/v1/quality/alignment.
func (s *Server) handleQualityAlignment(w http.ResponseWriter, r *http.Request) {
	symbol, start, end, ok := windowParams(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbol, start and end are required"})
		return
	}

	gate, err := s.corpus.AlignmentGate(r.Context(), symbol, start, end)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	s.recordGate(gate.Gate, gate.Passed)
	writeJSON(w, http.StatusOK, gateResponse{
		Gate: gate.Gate, Passed: gate.Passed, Detail: gate.Detail,
		Expected: gate.Expected, Actual: gate.Actual,
	})
}

// handleQualityCoverage serves GET /api/v1/quality/coverage.
func (s *Server) handleQualityCoverage(w http.ResponseWriter, r *http.Request) {
	symbol, start, end, ok := windowParams(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbol, start and end are required"})
		return
	}

	gate, err := s.corpus.CoverageGate(r.Context(), symbol, start, end)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	s.recordGate(gate.Gate, gate.Passed)
	writeJSON(w, http.StatusOK, gateResponse{
		Gate: gate.Gate, Passed: gate.Passed, Detail: gate.Detail,
		Expected: gate.Expected, Actual: gate.Actual,
		MissingRanges: gate.MissingRanges,
	})
}

// handleCoverageHealth serves GET /api/v1/coverage/health.
func (s *Server) handleCoverageHealth(w http.ResponseWriter, r *http.Request) {
	report, err := s.coverage.Snapshot(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// recordGate publishes a gate evaluation outcome.
func (s *Server) recordGate(gate string, passed bool) {
	if s.metrics == nil {
		return
	}
	outcome := "pass"
	if !passed {
		outcome = "fail"
	}
	s.metrics.GateEvaluations.WithLabelValues(gate, outcome).Inc()
}

// writeQueryError maps domain errors onto response codes.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	var gap *domain.UpstreamDataGapError
	switch {
	case errors.As(err, &gap):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "upstream_data_gap", Gap: gap})
	case errors.Is(err, storage.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrGateFailure), errors.Is(err, domain.ErrRunLocked):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.log.Error().Err(err).Msg("query failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// includeParam parses the include query parameter, a comma-separated
// subset of ohlcv, bias, triangles. Absent means everything.
func includeParam(r *http.Request) corpus.Include {
	raw := r.URL.Query().Get("include")
	if raw == "" {
		return corpus.IncludeAll
	}
	var inc corpus.Include
	for _, part := range strings.Split(raw, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "ohlcv":
			inc.OHLCV = true
		case "bias":
			inc.Bias = true
		case "triangles":
			inc.Triangles = true
		}
	}
	return inc
}

// windowParams parses the symbol/start/end triple shared by range
// queries.
func windowParams(r *http.Request) (symbol string, start, end int64, ok bool) {
	symbol = r.URL.Query().Get("symbol")
	start, okStart := int64Param(r, "start")
	end, okEnd := int64Param(r, "end")
	return symbol, start, end, symbol != "" && okStart && okEnd
}

func int64Param(r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
