package statement

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "sahara/pkg/domain"
	dErrors "sahara/pkg/domain-errors"
	"sahara/pkg/platform/httputil"
	"sahara/pkg/requestcontext"
)

type exporter interface {
	Export(ctx context.Context, poolID id.PoolID, caller id.ActorID) (*Receipt, error)
}

// Handler exposes statement export over HTTP.
type Handler struct {
	exporter exporter
	logger   *slog.Logger
}

func NewHandler(exporter exporter, logger *slog.Logger) *Handler {
	return &Handler{exporter: exporter, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/pools/{poolID}/statement", h.HandleExport)
}

// HandleExport handles POST /pools/{poolID}/statement.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	poolID, err := id.ParsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.exporter.Export(ctx, poolID, caller)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "statement export failed", "request_id", requestcontext.RequestID(ctx), "error", err)
		} else {
			h.logger.WarnContext(ctx, "statement export failed", "request_id", requestcontext.RequestID(ctx), "error", err)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}
