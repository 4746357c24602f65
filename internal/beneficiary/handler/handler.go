package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sahara/internal/beneficiary/models"
	"sahara/internal/beneficiary/service"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/httputil"
	"sahara/pkg/requestcontext"
)

// Service defines the beneficiary operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, cmd service.RegisterCommand, agent id.ActorID) (*models.Beneficiary, error)
	UpdateProfile(ctx context.Context, beneficiaryID id.BeneficiaryID, agent id.ActorID, patch models.ProfilePatch) (*models.Beneficiary, error)
	Get(ctx context.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error)
	ListByDisaster(ctx context.Context, disaster id.DisasterID, status models.Status, limit int) ([]*models.Beneficiary, error)
	SubmitApproval(ctx context.Context, beneficiaryID id.BeneficiaryID, approver id.ActorID) (*service.ApprovalResult, error)
	Flag(ctx context.Context, beneficiaryID id.BeneficiaryID, flagger id.ActorID, reason string) (*models.Beneficiary, error)
	Review(ctx context.Context, beneficiaryID id.BeneficiaryID, admin id.ActorID, approve bool, notes string) (*models.Beneficiary, error)
}

// Handler wires beneficiary endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts beneficiary endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/beneficiaries", h.HandleRegister)
	r.Get("/beneficiaries/{beneficiaryID}", h.HandleGet)
	r.Patch("/beneficiaries/{beneficiaryID}", h.HandleUpdate)
	r.Post("/beneficiaries/{beneficiaryID}/approvals", h.HandleApprove)
	r.Post("/beneficiaries/{beneficiaryID}/flag", h.HandleFlag)
	r.Post("/beneficiaries/{beneficiaryID}/review", h.HandleReview)
	r.Get("/disasters/{disasterID}/beneficiaries", h.HandleList)
}

// HandleRegister handles POST /beneficiaries.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	agent, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	b, err := h.service.Register(ctx, service.RegisterCommand{
		Authority:  req.parsedAuthority,
		DisasterID: req.parsedDisaster,
		Profile:    req.parsedProfile,
	}, agent)
	if err != nil {
		h.fail(ctx, w, "beneficiary registration failed", err)
		return
	}

	h.logger.InfoContext(ctx, "beneficiary registered",
		"request_id", requestID,
		"beneficiary_id", b.ID,
		"disaster_id", b.DisasterID,
		"agent_id", agent,
	)
	httputil.WriteJSON(w, http.StatusCreated, toResponse(b))
}

// HandleGet handles GET /beneficiaries/{beneficiaryID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	beneficiaryID, ok := beneficiaryParam(w, r)
	if !ok {
		return
	}
	b, err := h.service.Get(r.Context(), beneficiaryID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(b))
}

// HandleUpdate handles PATCH /beneficiaries/{beneficiaryID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agent, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	beneficiaryID, ok := beneficiaryParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	b, err := h.service.UpdateProfile(ctx, beneficiaryID, agent, req.parsedPatch)
	if err != nil {
		h.fail(ctx, w, "beneficiary update failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(b))
}

// HandleApprove handles POST /beneficiaries/{beneficiaryID}/approvals.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agent, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	beneficiaryID, ok := beneficiaryParam(w, r)
	if !ok {
		return
	}

	result, err := h.service.SubmitApproval(ctx, beneficiaryID, agent)
	if err != nil {
		h.fail(ctx, w, "approval rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ApprovalResponse{
		BeneficiaryResponse: *toResponse(result.Beneficiary),
		Verified:            result.Verified,
	})
}

// HandleFlag handles POST /beneficiaries/{beneficiaryID}/flag.
func (h *Handler) HandleFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agent, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	beneficiaryID, ok := beneficiaryParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FlagRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	b, err := h.service.Flag(ctx, beneficiaryID, agent, req.Reason)
	if err != nil {
		h.fail(ctx, w, "flag failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(b))
}

// HandleReview handles POST /beneficiaries/{beneficiaryID}/review.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	beneficiaryID, ok := beneficiaryParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	b, err := h.service.Review(ctx, beneficiaryID, admin, *req.Approve, req.Notes)
	if err != nil {
		h.fail(ctx, w, "review failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(b))
}

// HandleList handles GET /disasters/{disasterID}/beneficiaries?status=&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	disaster, err := id.ParseDisasterID(chi.URLParam(r, "disasterID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer"))
			return
		}
	}

	list, err := h.service.ListByDisaster(r.Context(), disaster, models.Status(r.URL.Query().Get("status")), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(list))
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}

func beneficiaryParam(w http.ResponseWriter, r *http.Request) (id.BeneficiaryID, bool) {
	beneficiaryID, err := id.ParseBeneficiaryID(chi.URLParam(r, "beneficiaryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.BeneficiaryID{}, false
	}
	return beneficiaryID, true
}
