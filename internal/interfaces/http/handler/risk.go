package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"login-risk-engine/internal/application/dto"
	riskapp "login-risk-engine/internal/application/risk"
	"login-risk-engine/internal/domain/risk"
)

const maxBodyBytes = 1 << 20

// RiskHandler serves the scoring endpoints and the ledger read side
type RiskHandler struct {
	assess  *riskapp.AssessAttemptUseCase
	outcome *riskapp.RecordOutcomeUseCase
	ledger  *risk.Ledger
	logger  *zap.Logger
	now     func() time.Time
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(assess *riskapp.AssessAttemptUseCase, outcome *riskapp.RecordOutcomeUseCase, ledger *risk.Ledger, logger *zap.Logger) *RiskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskHandler{
		assess:  assess,
		outcome: outcome,
		ledger:  ledger,
		logger:  logger,
		now:     time.Now,
	}
}

// Assess handles POST /risk/assess.
// All signals unavailable still returns the conservative assessment, with 503.
func (h *RiskHandler) Assess(w http.ResponseWriter, r *http.Request) {
	var req dto.AssessAttemptRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	assessment, err := h.assess.Execute(r.Context(), req.ToAttempt(h.now().UTC()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if assessment.AllSignalsUnavailable() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, assessment)
}

// RecordOutcome handles POST /risk/attempt-outcome
func (h *RiskHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordOutcomeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.outcome.Execute(r.Context(), req.AttemptID, risk.Outcome(req.FinalOutcome))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GetAttempt handles GET /risk/attempts/{attemptId}
func (h *RiskHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	record, err := h.ledger.Get(r.Context(), chi.URLParam(r, "attemptId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ListAttempts handles GET /risk/identities/{identityKey}/attempts?limit=N
func (h *RiskHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	identityKey := chi.URLParam(r, "identityKey")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.ledger.History(r.Context(), identityKey, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []*risk.AttemptRecord{}
	}
	writeJSON(w, http.StatusOK, dto.AttemptListResponse{
		IdentityKey: identityKey,
		Attempts:    records,
		Count:       len(records),
	})
}

// GetBaseline handles GET /risk/identities/{identityKey}/baseline
func (h *RiskHandler) GetBaseline(w http.ResponseWriter, r *http.Request) {
	baseline, err := h.ledger.Baseline(r.Context(), chi.URLParam(r, "identityKey"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if baseline == nil {
		writeError(w, http.StatusNotFound, risk.ErrBaselineNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, baseline)
}

func (h *RiskHandler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, risk.ErrMalformedAttempt), errors.Is(err, risk.ErrInvalidOutcome):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, risk.ErrAttemptNotFound), errors.Is(err, risk.ErrBaselineNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, risk.ErrOutcomeAlreadyRecorded), errors.Is(err, risk.ErrOutcomeNotExpected):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
