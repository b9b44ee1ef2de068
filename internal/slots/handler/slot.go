package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"campusbook/internal/slots/service"
	apperrors "campusbook/pkg/errors"
	httputil "campusbook/pkg/http"
	"campusbook/pkg/identity"
	"campusbook/pkg/logger"
	"campusbook/pkg/model"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

// requireRole resolves the caller's identity and checks their role
// against the allowed set. A missing identity is 401, a wrong role
// is 403.
func (h *SlotHandler) requireRole(w http.ResponseWriter, r *http.Request, roles ...model.Role) (identity.Identity, bool) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, "requireRole", apperrors.Unauthorized("Authentication required"))
		return identity.Identity{}, false
	}

	for _, role := range roles {
		if ident.Role == role {
			return ident, true
		}
	}

	h.log.Warn("Role not permitted for operation",
		"user_id", ident.UserID,
		"role", ident.Role,
		"path", r.URL.Path,
	)
	h.writeError(w, "requireRole", apperrors.Forbidden("Your role may not perform this operation"))
	return identity.Identity{}, false
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ident, ok := h.requireRole(w, r, model.RoleFaculty)
	if !ok {
		return
	}

	var slot model.Slot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	// Ownership always comes from the verified identity, never the body.
	slot.OwnerID = ident.UserID

	if err := h.service.Create(r.Context(), &slot); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, slot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	slot, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot.Summary()); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Available(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := h.requireRole(w, r, model.RoleStudent, model.RoleFaculty, model.RoleAlumni); !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}

	slots, err := h.service.ListAvailable(r.Context(), time.Now().UTC(), limit, offset)
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "Available", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ident, ok := h.requireRole(w, r, model.RoleFaculty)
	if !ok {
		return
	}

	h.listForOwner(w, r, "Mine", ident.UserID)
}

func (h *SlotHandler) ByOwner(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.listForOwner(w, r, "ByOwner", ps.ByName("ownerId"))
}

func (h *SlotHandler) listForOwner(w http.ResponseWriter, r *http.Request, handlerName, ownerID string) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, handlerName, err)
		return
	}

	slots, err := h.service.ListForOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		h.writeError(w, handlerName, err)
		return
	}

	summaries := make([]model.SlotSummary, 0, len(slots))
	for _, slot := range slots {
		summaries = append(summaries, slot.Summary())
	}

	if err := httputil.WriteSuccess(w, summaries); err != nil {
		h.log.Error("failed to write success response", "handler", handlerName, "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Book(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ident, ok := h.requireRole(w, r, model.RoleStudent)
	if !ok {
		return
	}

	id := ps.ByName("id")
	if err := h.service.Book(r.Context(), id, ident.UserID); err != nil {
		h.writeError(w, "Book", err)
		return
	}

	slot, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		// The booking itself succeeded.
		h.log.Warn("Booked slot could not be re-read", "slot_id", id, "error", err)
		httputil.WriteNoContent(w)
		return
	}

	if err := httputil.WriteSuccess(w, slot.Summary()); err != nil {
		h.log.Error("failed to write success response", "handler", "Book", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ident, ok := h.requireRole(w, r, model.RoleStudent)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), ps.ByName("id"), ident.UserID); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ident, ok := h.requireRole(w, r, model.RoleFaculty)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id"), ident.UserID); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots", h.Create)
	router.GET("/api/v1/slots/available", h.Available)
	router.GET("/api/v1/slots/mine", h.Mine)
	router.GET("/api/v1/slots/owner/:ownerId", h.ByOwner)
	router.GET("/api/v1/slots/id/:id", h.GetByID)
	router.POST("/api/v1/slots/id/:id/book", h.Book)
	router.POST("/api/v1/slots/id/:id/cancel", h.Cancel)
	router.DELETE("/api/v1/slots/id/:id", h.Delete)
}
