package billing

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libralend/internal/apperr"
	"libralend/internal/auth"
	"libralend/internal/httpio"
)

type Handler struct {
	service Service
	log     *slog.Logger
}

func NewHandler(service Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// CallbackRoutes mounts the processor redirects, which carry no credentials.
func (h *Handler) CallbackRoutes(r chi.Router) {
	r.Get("/success", h.handleSuccess)
	r.Get("/cancel", h.handleCancel)
}

// Routes mounts the authenticated payment endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{id}/session", h.handleStartPayment)
}

func (h *Handler) handleSuccess(w http.ResponseWriter, r *http.Request) {
	settlement, err := h.service.HandleSuccess(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	httpio.JSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("Payment %s successful!", settlement.PaymentID),
		"settlement": settlement,
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.service.HandleCancel(r.Context(), r.URL.Query().Get("session_id"))
	httpio.JSON(w, http.StatusOK, map[string]string{
		"message": "Payment cancelled. The session can still be paid until it expires.",
	})
}

func (h *Handler) handleStartPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpio.Error(w, h.log, apperr.Wrap(apperr.KindInvalidInput, "invalid payment ID", err))
		return
	}

	p, _ := auth.FromContext(r.Context())
	payment, err := h.service.StartPayment(r.Context(), p, id)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	httpio.JSON(w, http.StatusOK, payment)
}
