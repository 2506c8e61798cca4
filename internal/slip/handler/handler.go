package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"slipdesk/internal/promoter"
	"slipdesk/internal/slip/models"
	"slipdesk/internal/slip/service"
	txnmodels "slipdesk/internal/txn/models"
	dErrors "slipdesk/pkg/domain-errors"
	"slipdesk/pkg/platform/httputil"
	"slipdesk/pkg/requestcontext"
)

// Service defines the slip operations the HTTP layer depends on.
type Service interface {
	Create(ctx context.Context, input service.CreateSlipInput) (*service.CreateSlipResult, error)
	Status(ctx context.Context, code string) (*service.StatusView, error)
	Cancel(ctx context.Context, code, reason string) (*models.DepositSlip, error)
	Get(ctx context.Context, code string) (*models.DepositSlip, error)
	Retrieve(ctx context.Context, code string) (*models.DepositSlip, error)
	Verify(ctx context.Context, code string, input service.VerifyInput) (*models.DepositSlip, error)
	IssueOTP(ctx context.Context, code string) (*service.IssueOTPResult, error)
	VerifyOTP(ctx context.Context, code, submitted string) (*models.DepositSlip, error)
	Complete(ctx context.Context, code string, input service.CompleteInput) (*promoter.Outcome, error)
	Reject(ctx context.Context, code, reason string) (*models.DepositSlip, error)
	Pending(ctx context.Context) ([]*models.DepositSlip, error)
	Receipt(ctx context.Context, number string) (*promoter.ReceiptCheck, error)
}

// Handler wires the slip endpoints to the slip service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a slip handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterCustomer mounts the customer-facing endpoints. The cancel route
// must sit behind the cancel-token middleware; the caller applies it.
func (h *Handler) RegisterCustomer(r chi.Router) {
	r.Post("/slips", h.HandleCreate)
	r.Get("/slips/status/{drid}", h.HandleStatus)
}

// RegisterCancel mounts the customer cancel endpoint.
func (h *Handler) RegisterCancel(r chi.Router) {
	r.Post("/slips/{drid}/cancel", h.HandleCancel)
}

// RegisterTeller mounts the counter-side endpoints. The caller applies the
// teller auth middleware.
func (h *Handler) RegisterTeller(r chi.Router) {
	r.Get("/slips/pending", h.HandlePending)
	r.Get("/slips/{drid}", h.HandleGet)
	r.Post("/slips/{drid}/retrieve", h.HandleRetrieve)
	r.Post("/slips/{drid}/verify", h.HandleVerify)
	r.Post("/slips/{drid}/otp", h.HandleIssueOTP)
	r.Post("/slips/{drid}/otp/verify", h.HandleVerifyOTP)
	r.Post("/slips/{drid}/complete", h.HandleComplete)
	r.Post("/slips/{drid}/reject", h.HandleReject)
	r.Get("/receipts/{number}", h.HandleReceipt)
}

// HandleCreate handles POST /slips requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CreateSlipRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Create(ctx, req.Input())
	if err != nil {
		h.logger.WarnContext(ctx, "slip intake refused",
			"request_id", requestID,
			"account", txnmodels.MaskAccount(req.CustomerAccount),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "slip created",
		"request_id", requestID,
		"drid", result.Slip.Code,
		"type", result.Slip.Payload.Type,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromCreateResult(result))
}

// HandleStatus handles GET /slips/status/{drid} requests. Unauthenticated;
// the response is the minimal probe view, never the full slip.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, err := dridParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.Status(ctx, code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleCancel handles POST /slips/{drid}/cancel requests. The cancel-token
// middleware has already bound the caller to a DRID; it must match the path.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	code, err := dridParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if requestcontext.CustomerRef(ctx) != code {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cancel token does not match this slip"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CancelRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	slip, err := h.service.Cancel(ctx, code, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSlip(slip))
}

// HandleGet handles GET /teller/slips/{drid} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, err := dridParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	slip, err := h.service.Get(ctx, code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSlip(slip))
}

// HandleRetrieve handles POST /teller/slips/{drid}/retrieve requests.
func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, err := dridParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	slip, err := h.service.Retrieve(ctx, code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSlip(slip))
}

// HandleVerify handles POST /teller/slips/{drid}/verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	code, err := dridParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	slip, err := h.service.Verify(ctx, code, req.Input())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSlip(slip))
}

// HandleIssueOTP handles POST /teller/slips/{drid}/otp requests.
func (h *Handler) HandleIssueOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, err := dridParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.IssueOTP(ctx, code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &IssueOTPResponse{
		MaskedPhone:    result.MaskedPhone,
		ExpiresAt:      result.ExpiresAt,
		MaxAttempts:    result.MaxAttempts,
		DeliveryFailed: result.DeliveryFailed,
	})
}

// HandleVerifyOTP handles POST /teller/slips/{drid}/otp/verify requests.
func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	code, err := dridParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[VerifyOTPRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	slip, err := h.service.VerifyOTP(ctx, code, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSlip(slip))
}

// HandleComplete handles POST /teller/slips/{drid}/complete requests.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	code, err := dridParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[CompleteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcome, err := h.service.Complete(ctx, code, req.Input())
	if err != nil {
		h.logger.WarnContext(ctx, "slip completion refused",
			"request_id", requestID,
			"drid", code,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "slip completion served",
		"request_id", requestID,
		"drid", code,
		"transaction", outcome.Transaction.Reference,
		"replayed", outcome.Replayed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromOutcome(outcome))
}

// HandleReject handles POST /teller/slips/{drid}/reject requests.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	code, err := dridParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	slip, err := h.service.Reject(ctx, code, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSlip(slip))
}

// HandleReceipt handles GET /teller/receipts/{number} requests. The receipt
// signature is re-verified on every fetch; a failed check comes back as
// authentic=false rather than an error.
func (h *Handler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	number := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "number")))
	if number == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "receipt number is required"))
		return
	}

	check, err := h.service.Receipt(ctx, number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReceiptCheck(check))
}

// HandlePending handles GET /teller/slips/pending requests.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slips, err := h.service.Pending(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSlips(slips))
}

func dridParam(r *http.Request) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "drid")))
	if code == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "drid path parameter is required")
	}
	return code, nil
}
