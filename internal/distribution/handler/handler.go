package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sahara/internal/distribution/models"
	"sahara/internal/distribution/service"
	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/httputil"
	"sahara/pkg/requestcontext"
)

// Service defines the distribution operations exposed over HTTP.
type Service interface {
	Distribute(ctx context.Context, poolID id.PoolID, beneficiaryID id.BeneficiaryID, caller id.ActorID, notes string) (*models.Distribution, error)
	Claim(ctx context.Context, distributionID id.DistributionID, caller id.ActorID) (*service.ClaimResult, error)
	Reclaim(ctx context.Context, distributionID id.DistributionID, caller id.ActorID) (*models.Distribution, error)
	Get(ctx context.Context, distributionID id.DistributionID) (*models.Distribution, error)
	ListByPool(ctx context.Context, poolID id.PoolID) ([]*models.Distribution, error)
}

// Handler wires distribution endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts distribution endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/pools/{poolID}/distributions", h.HandleDistribute)
	r.Get("/pools/{poolID}/distributions", h.HandleListByPool)
	r.Get("/distributions/{distributionID}", h.HandleGet)
	r.Post("/distributions/{distributionID}/claim", h.HandleClaim)
	r.Post("/distributions/{distributionID}/reclaim", h.HandleReclaim)
}

// HandleDistribute handles POST /pools/{poolID}/distributions.
func (h *Handler) HandleDistribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	poolID, err := id.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DistributeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Distribute(ctx, poolID, req.parsedBeneficiary, caller, req.Notes)
	if err != nil {
		h.fail(ctx, w, "distribution failed", err)
		return
	}

	h.logger.InfoContext(ctx, "distribution created",
		"request_id", requestID,
		"distribution_id", d.ID,
		"pool_id", poolID,
		"allocated", d.Allocated,
	)
	httputil.WriteJSON(w, http.StatusCreated, toDistributionResponse(d))
}

// HandleListByPool handles GET /pools/{poolID}/distributions.
func (h *Handler) HandleListByPool(w http.ResponseWriter, r *http.Request) {
	poolID, err := id.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListByPool(r.Context(), poolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDistributionListResponse(list))
}

// HandleGet handles GET /distributions/{distributionID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	distributionID, ok := distributionParam(w, r)
	if !ok {
		return
	}
	d, err := h.service.Get(r.Context(), distributionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDistributionResponse(d))
}

// HandleClaim handles POST /distributions/{distributionID}/claim.
func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	distributionID, ok := distributionParam(w, r)
	if !ok {
		return
	}

	res, err := h.service.Claim(ctx, distributionID, caller)
	if err != nil {
		h.fail(ctx, w, "claim failed", err)
		return
	}

	h.logger.InfoContext(ctx, "distribution claimed",
		"request_id", requestcontext.RequestID(ctx),
		"distribution_id", distributionID,
		"amount", res.Amount,
		"tranches", res.Tranches.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, toClaimResponse(res))
}

// HandleReclaim handles POST /distributions/{distributionID}/reclaim.
func (h *Handler) HandleReclaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	distributionID, ok := distributionParam(w, r)
	if !ok {
		return
	}

	d, err := h.service.Reclaim(ctx, distributionID, caller)
	if err != nil {
		h.fail(ctx, w, "reclaim failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDistributionResponse(d))
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}

func distributionParam(w http.ResponseWriter, r *http.Request) (id.DistributionID, bool) {
	distributionID, err := id.ParseDistributionID(chi.URLParam(r, "distributionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DistributionID{}, false
	}
	return distributionID, true
}
