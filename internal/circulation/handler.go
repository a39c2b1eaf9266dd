// internal/circulation/handler.go
package circulation

import (
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

// Routes mounts the loan endpoints. Callers must already be authenticated.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.handleCheckout)
	r.Get("/{id}", h.handleGetLoan)
	r.Get("/{id}/history", h.handleHistory)
	r.Post("/{id}/return", h.handleReturn)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.Error(w, h.log, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	result, err := h.service.Checkout(r.Context(), p, req.ItemID, req.ExpectedReturnDate)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	httpio.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	result, err := h.service.Return(r.Context(), p, id)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	httpio.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	detail, err := h.service.GetLoan(r.Context(), p, id)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	httpio.JSON(w, http.StatusOK, detail)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	events, err := h.service.History(r.Context(), p, id)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	httpio.JSON(w, http.StatusOK, events)
}

func loanID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindInvalidInput, "invalid loan ID", err)
	}
	return id, nil
}
