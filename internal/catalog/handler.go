// internal/catalog/handler.go
package catalog

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

// Routes mounts the item endpoints. Admin checks are done by the service.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.handleAddItem)
	r.Get("/{id}", h.handleGetItem)
	r.Patch("/{id}", h.handleRestock)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.Error(w, h.log, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	item, err := h.service.AddItem(r.Context(), p, req)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	httpio.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	httpio.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	var req RestockRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.Error(w, h.log, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	item, err := h.service.Restock(r.Context(), p, id, req.TotalCopies)
	if err != nil {
		httpio.Error(w, h.log, err)
		return
	}
	httpio.JSON(w, http.StatusOK, item)
}

func itemID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindInvalidInput, "invalid item ID", err)
	}
	return id, nil
}
