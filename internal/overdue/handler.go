package overdue

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"libralend/internal/httpio"
)

type Handler struct {
	sweeper *Sweeper
	log     *slog.Logger
}

func NewHandler(sweeper *Sweeper, log *slog.Logger) *Handler {
	return &Handler{sweeper: sweeper, log: log}
}

// Routes mounts the manual sweep trigger. Callers must be admins.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.handleSweep)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	httpio.JSON(w, http.StatusOK, report)
}
