package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sahara/internal/pool/models"
	"sahara/internal/pool/service"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/httputil"
	"sahara/pkg/requestcontext"
)

// Service defines the pool operations exposed over HTTP.
type Service interface {
	CreatePool(ctx context.Context, cmd service.CreateCommand, authority id.ActorID) (*models.Pool, error)
	Get(ctx context.Context, poolID id.PoolID) (*models.Pool, error)
	ListByDisaster(ctx context.Context, disaster id.DisasterID) ([]*models.Pool, error)
	UpdateConfig(ctx context.Context, poolID id.PoolID, caller id.ActorID, patch models.ConfigPatch) (*models.Pool, error)
	RecordDeposit(ctx context.Context, poolID id.PoolID, donor id.ActorID, cmd service.DepositCommand) (*service.DepositResult, error)
	Register(ctx context.Context, poolID id.PoolID, beneficiaryID id.BeneficiaryID, caller id.ActorID) (*models.Registration, error)
	ListRegistrations(ctx context.Context, poolID id.PoolID) ([]*models.Registration, error)
	Lock(ctx context.Context, poolID id.PoolID, caller id.ActorID) (*models.Pool, error)
	ClosePool(ctx context.Context, poolID id.PoolID, caller id.ActorID) (*models.Pool, error)
}

// Handler wires pool endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts pool endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/pools", h.HandleCreate)
	r.Get("/pools/{poolID}", h.HandleGet)
	r.Patch("/pools/{poolID}", h.HandleUpdate)
	r.Post("/pools/{poolID}/deposits", h.HandleDeposit)
	r.Post("/pools/{poolID}/registrations", h.HandleRegister)
	r.Get("/pools/{poolID}/registrations", h.HandleListRegistrations)
	r.Post("/pools/{poolID}/lock", h.HandleLock)
	r.Post("/pools/{poolID}/close", h.HandleClose)
	r.Get("/disasters/{disasterID}/pools", h.HandleListByDisaster)
}

// HandleCreate handles POST /pools.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	authority, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreatePoolRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.CreatePool(ctx, req.parsed, authority)
	if err != nil {
		h.fail(ctx, w, "pool creation failed", err)
		return
	}

	h.logger.InfoContext(ctx, "pool created",
		"request_id", requestID,
		"pool_id", p.ID,
		"disaster_id", p.DisasterID,
		"distribution_type", p.Policy,
	)
	httputil.WriteJSON(w, http.StatusCreated, toPoolResponse(p))
}

// HandleGet handles GET /pools/{poolID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), poolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPoolResponse(p))
}

// HandleUpdate handles PATCH /pools/{poolID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	poolID, ok := poolParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdatePoolRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	p, err := h.service.UpdateConfig(ctx, poolID, caller, req.parsedPatch)
	if err != nil {
		h.fail(ctx, w, "pool update failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPoolResponse(p))
}

// HandleDeposit handles POST /pools/{poolID}/deposits.
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	donor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	poolID, ok := poolParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DepositRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.RecordDeposit(ctx, poolID, donor, service.DepositCommand{
		Amount:    req.Amount,
		Message:   req.Message,
		Anonymous: req.Anonymous,
	})
	if err != nil {
		h.fail(ctx, w, "deposit failed", err)
		return
	}

	h.logger.InfoContext(ctx, "deposit recorded",
		"request_id", requestID,
		"pool_id", poolID,
		"net", res.Net,
		"fee", res.Fee,
		"reference", res.Reference,
	)
	httputil.WriteJSON(w, http.StatusCreated, toDepositResponse(res))
}

// HandleRegister handles POST /pools/{poolID}/registrations.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	poolID, ok := poolParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegistrationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	reg, err := h.service.Register(ctx, poolID, req.parsedBeneficiary, caller)
	if err != nil {
		h.fail(ctx, w, "pool registration failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRegistrationResponse(reg))
}

// HandleListRegistrations handles GET /pools/{poolID}/registrations.
func (h *Handler) HandleListRegistrations(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolParam(w, r)
	if !ok {
		return
	}
	regs, err := h.service.ListRegistrations(r.Context(), poolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistrationListResponse(regs))
}

// HandleLock handles POST /pools/{poolID}/lock.
func (h *Handler) HandleLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	poolID, ok := poolParam(w, r)
	if !ok {
		return
	}

	p, err := h.service.Lock(ctx, poolID, caller)
	if err != nil {
		h.fail(ctx, w, "pool lock failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPoolResponse(p))
}

// HandleClose handles POST /pools/{poolID}/close.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	poolID, ok := poolParam(w, r)
	if !ok {
		return
	}

	p, err := h.service.ClosePool(ctx, poolID, caller)
	if err != nil {
		h.fail(ctx, w, "pool close failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPoolResponse(p))
}

// HandleListByDisaster handles GET /disasters/{disasterID}/pools.
func (h *Handler) HandleListByDisaster(w http.ResponseWriter, r *http.Request) {
	disaster, err := id.ParseDisasterID(chi.URLParam(r, "disasterID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pools, err := h.service.ListByDisaster(r.Context(), disaster)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPoolListResponse(pools))
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}

func poolParam(w http.ResponseWriter, r *http.Request) (id.PoolID, bool) {
	poolID, err := id.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PoolID{}, false
	}
	return poolID, true
}
