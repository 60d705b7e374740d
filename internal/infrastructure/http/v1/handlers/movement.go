package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"botiquin/internal/domain/ledger"
	"botiquin/internal/infrastructure/http/v1/dto"
	"botiquin/internal/infrastructure/storage/postgres"
)

// MovementHandler handles ledger movement endpoints.
type MovementHandler struct {
	BaseHandler
	service *ledger.Service
	audit   *postgres.AuditService
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(service *ledger.Service, audit *postgres.AuditService) *MovementHandler {
	return &MovementHandler{service: service, audit: audit}
}

// Create handles POST /movements.
func (h *MovementHandler) Create(c *gin.Context) {
	var req dto.CreateMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Create(c.Request.Context(), m); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMovement(m))
}

// GetByID handles GET /movements/:id.
func (h *MovementHandler) GetByID(c *gin.Context) {
	movementID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	m, err := h.service.GetByID(c.Request.Context(), movementID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMovement(m))
}

// GetByFolio handles GET /movements/folio/:folio.
func (h *MovementHandler) GetByFolio(c *gin.Context) {
	m, err := h.service.GetByFolio(c.Request.Context(), c.Param("folio"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMovement(m))
}

// List handles GET /movements.
func (h *MovementHandler) List(c *gin.Context) {
	var req dto.ListMovementsRequest
	if !h.BindQuery(c, &req) {
		return
	}

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.MovementResponse, len(result.Items))
	for i, m := range result.Items {
		items[i] = dto.FromMovement(m)
	}

	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Update handles PUT /movements/:id.
func (h *MovementHandler) Update(c *gin.Context) {
	movementID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m, err := h.service.GetByID(c.Request.Context(), movementID)
	if err != nil {
		h.Error(c, err)
		return
	}

	newLines, err := req.ApplyTo(m)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Update(c.Request.Context(), m, newLines); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMovement(m))
}

// History handles GET /movements/:id/history (admin only).
func (h *MovementHandler) History(c *gin.Context) {
	movementID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	entries, err := h.audit.GetEntityHistory(c.Request.Context(), "movement", movementID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.AuditEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = dto.AuditEntryResponse{
			ID:         e.ID.String(),
			EntityType: e.EntityType,
			Action:     e.Action,
			Username:   e.Username,
			CreatedAt:  e.CreatedAt,
		}
		if len(e.Changes) > 0 {
			// Best effort; a malformed payload still renders the rest of the entry.
			_ = json.Unmarshal(e.Changes, &items[i].Changes)
		}
	}
	h.OK(c, gin.H{"items": items})
}

// Delete handles DELETE /movements/:id.
func (h *MovementHandler) Delete(c *gin.Context) {
	movementID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), movementID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
