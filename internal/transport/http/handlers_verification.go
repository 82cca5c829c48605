package httptransport

import (
	"errors"
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
	"secureid/internal/verify"
)

// VerificationHandler serves code issuance for holders and the check
// endpoints a verifier calls.
type VerificationHandler struct {
	holders *holder.Service
	ledger  verify.Ledger
	logger  *slog.Logger
}

// NewVerificationHandler constructs the handler with its dependencies.
func NewVerificationHandler(holders *holder.Service, l verify.Ledger, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{holders: holders, ledger: l, logger: logger}
}

// Register mounts verification endpoints. Code issuance needs the holder's
// bearer token; verify and log are open, a verifier holds no credential.
func (h *VerificationHandler) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/verification/code", h.HandleIssueCode)
	})
	r.Post("/verification/verify", h.HandleVerify)
	r.Post("/verification/log", h.HandleLog)
}

// IssueCodeRequest selects what claim the rendered payload asks for.
type IssueCodeRequest struct {
	Type string `json:"type"`
}

// IssueCodeResponse carries the code (to be shared out-of-band) and the
// payload (to be rendered for scanning). They travel together only on this
// authenticated holder channel.
type IssueCodeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
	Payload   string    `json:"payload"`
}

// HandleIssueCode handles POST /verification/code.
func (h *VerificationHandler) HandleIssueCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subject := requestcontext.Holder(ctx)
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	address := domain.Address(subject)

	req, ok := httputil.DecodeAndPrepare[IssueCodeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	payloadType := verify.PayloadType(req.Type)
	if payloadType == "" {
		payloadType = verify.PayloadTypeIdentity
	}
	if payloadType != verify.PayloadTypeIdentity && payloadType != verify.PayloadTypeAge {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "type must be identity or age"))
		return
	}

	binding, err := h.holders.IssueCode(ctx, address)
	if err != nil {
		h.logger.ErrorContext(ctx, "code issuance failed",
			"request_id", requestID,
			"holder", subject,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	payload, err := h.holders.RenderPayload(ctx, address, payloadType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification code issued",
		"request_id", requestID,
		"holder", subject,
		"expires_at", binding.ExpiresAt,
	)
	httputil.WriteJSON(w, http.StatusCreated, IssueCodeResponse{
		Code:      binding.Code,
		ExpiresAt: binding.ExpiresAt,
		Payload:   payload,
	})
}

// VerifyRequest is what a verifier presents: the code told out-of-band and
// the payload exactly as scanned.
type VerifyRequest struct {
	Code    string `json:"code"`
	Payload string `json:"payload"`
}

// VerifyResponse reports the outcome. A false verified is a normal negative,
// not an error.
type VerifyResponse struct {
	Verified bool   `json:"verified"`
	Type     string `json:"type,omitempty"`
}

// HandleVerify handles POST /verification/verify by driving one protocol
// attempt end to end.
func (h *VerificationHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	attempt := verify.NewAttempt(h.ledger)
	if err := attempt.EnterCode(req.Code); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := attempt.ScanPayload([]byte(req.Payload)); err != nil {
		httputil.WriteError(w, err)
		return
	}

	verified, err := attempt.Verify(ctx)
	if err != nil {
		var coded *dErrors.Error
		if !errors.As(err, &coded) {
			h.logger.ErrorContext(ctx, "verification failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	response := VerifyResponse{Verified: verified}
	if verified {
		response.Type = string(attempt.PayloadType())
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}

// LogRequest asks the ledger to record a verification event.
type LogRequest struct {
	ProofID     string `json:"proofId"`
	AddressHash string `json:"addressHash"`
}

// HandleLog handles POST /verification/log.
func (h *VerificationHandler) HandleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LogRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.ProofID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "proofId must not be empty"))
		return
	}
	fingerprint, err := hashing.ParseHex(req.AddressHash)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInvalidInput, "invalid addressHash", err))
		return
	}

	if err := h.ledger.LogVerificationEvent(ctx, req.ProofID, fingerprint); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
