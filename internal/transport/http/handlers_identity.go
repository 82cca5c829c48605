package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "secureid/pkg/domain-errors"
	"secureid/pkg/platform/httputil"
	"secureid/pkg/requestcontext"

	"secureid/internal/domain"
	"secureid/internal/hashing"
	"secureid/internal/holder"
	"secureid/internal/ledger"
)

// IdentityHandler serves the holder-facing identity lifecycle.
type IdentityHandler struct {
	holders *holder.Service
	ledger  *ledger.Service
	logger  *slog.Logger
}

// NewIdentityHandler constructs the handler with its dependencies.
func NewIdentityHandler(holders *holder.Service, l *ledger.Service, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{holders: holders, ledger: l, logger: logger}
}

// Register mounts identity endpoints. Mutations require bearer auth; reads
// are public because they expose only what the ledger itself discloses.
func (h *IdentityHandler) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/identity", h.HandleEnroll)
		r.Delete("/identity/{holder}", h.HandleDelete)
		r.Post("/identity/{holder}/liveness", h.HandleLiveness)
	})
	r.Get("/identity/{holder}", h.HandleGet)
	r.Get("/proof/{proofId}", h.HandleGetPayload)
	r.Get("/document/used/{fingerprint}", h.HandleDocumentUsed)
}

// EnrollRequest is the decoded document a holder submits for enrollment.
type EnrollRequest struct {
	FullName    string `json:"fullName"`
	ReferenceID string `json:"referenceId"`
	DateOfBirth string `json:"dateOfBirth"`
	AgeYears    int    `json:"ageYears"`
}

// EnrollResponse returns the anchored proof.
type EnrollResponse struct {
	ProofID          string `json:"proofId"`
	Commitment       string `json:"commitment"`
	IsAdult          bool   `json:"isAdult"`
	LivenessVerified bool   `json:"livenessVerified"`
}

// IdentityResponse is the public view of a ledger record.
type IdentityResponse struct {
	Holder           string    `json:"holder"`
	ProofID          string    `json:"proofId"`
	Commitment       string    `json:"commitment"`
	IsAdult          bool      `json:"isAdult"`
	LivenessVerified bool      `json:"livenessVerified"`
	CreatedAt        time.Time `json:"createdAt"`
	Deleted          bool      `json:"deleted"`
}

// HandleEnroll handles POST /identity.
func (h *IdentityHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subject := requestcontext.Holder(ctx)
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[EnrollRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.holders.Enroll(ctx, domain.Address(subject), domain.DocumentRecord{
		FullName:    req.FullName,
		ReferenceID: req.ReferenceID,
		DateOfBirth: req.DateOfBirth,
		AgeYears:    req.AgeYears,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "enrollment failed",
			"request_id", requestID,
			"holder", subject,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identity enrolled",
		"request_id", requestID,
		"holder", subject,
		"proof_id", result.ProofID,
	)
	httputil.WriteJSON(w, http.StatusCreated, EnrollResponse{
		ProofID:          result.ProofID,
		Commitment:       result.Commitment,
		IsAdult:          result.PublicSignals.IsAdult,
		LivenessVerified: result.PublicSignals.LivenessVerified,
	})
}

// HandleGet handles GET /identity/{holder}.
func (h *IdentityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	address, err := domain.NormalizeAddress(chi.URLParam(r, "holder"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInvalidInput, "invalid holder address", err))
		return
	}

	record, err := h.ledger.GetIdentity(ctx, address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !record.Exists() {
		httputil.WriteError(w, ledger.ErrNotFound)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, IdentityResponse{
		Holder:           address.String(),
		ProofID:          record.ProofID,
		Commitment:       record.Commitment,
		IsAdult:          record.IsAdult,
		LivenessVerified: record.LivenessVerified,
		CreatedAt:        record.CreatedAt,
		Deleted:          record.Deleted,
	})
}

// HandleDelete handles DELETE /identity/{holder}. Holders may only delete
// their own identity.
func (h *IdentityHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	address, ok := h.authorizedHolder(w, r)
	if !ok {
		return
	}

	if err := h.holders.Unenroll(ctx, address); err != nil {
		h.logger.ErrorContext(ctx, "identity deletion failed",
			"request_id", requestID,
			"holder", address.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identity deleted",
		"request_id", requestID,
		"holder", address.String(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// LivenessRequest toggles the liveness public signal.
type LivenessRequest struct {
	LivenessVerified bool `json:"livenessVerified"`
}

// HandleLiveness handles POST /identity/{holder}/liveness.
func (h *IdentityHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	address, ok := h.authorizedHolder(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[LivenessRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.ledger.UpdateLivenessStatus(ctx, address, req.LivenessVerified); err != nil {
		h.logger.ErrorContext(ctx, "liveness update failed",
			"request_id", requestID,
			"holder", address.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PayloadResponse wraps a stored proof payload.
type PayloadResponse struct {
	ProofID string `json:"proofId"`
	Payload string `json:"payload"`
}

// HandleGetPayload handles GET /proof/{proofId}. An unknown proof id yields
// an empty payload, mirroring the ledger contract.
func (h *IdentityHandler) HandleGetPayload(w http.ResponseWriter, r *http.Request) {
	proofID := chi.URLParam(r, "proofId")
	payload, err := h.ledger.GetPayload(r.Context(), proofID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PayloadResponse{ProofID: proofID, Payload: payload})
}

// DocumentUsedResponse reports document fingerprint usage.
type DocumentUsedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Used        bool   `json:"used"`
}

// HandleDocumentUsed handles GET /document/used/{fingerprint}.
func (h *IdentityHandler) HandleDocumentUsed(w http.ResponseWriter, r *http.Request) {
	fingerprint, err := hashing.ParseHex(chi.URLParam(r, "fingerprint"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInvalidInput, "invalid document fingerprint", err))
		return
	}

	used, err := h.ledger.IsDocumentUsed(r.Context(), fingerprint)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DocumentUsedResponse{Fingerprint: fingerprint.Hex(), Used: used})
}

// authorizedHolder resolves the path holder and checks it matches the
// authenticated subject.
func (h *IdentityHandler) authorizedHolder(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	ctx := r.Context()

	subject := requestcontext.Holder(ctx)
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}

	address, err := domain.NormalizeAddress(chi.URLParam(r, "holder"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInvalidInput, "invalid holder address", err))
		return "", false
	}
	if address.String() != subject {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token does not authorize this holder"))
		return "", false
	}
	return address, true
}
