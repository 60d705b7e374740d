package handlers

import (
	"github.com/gin-gonic/gin"

	"botiquin/internal/domain/medication"
	"botiquin/internal/infrastructure/http/v1/dto"
)

// MedicationHandler handles medication directory endpoints.
type MedicationHandler struct {
	BaseHandler
	service *medication.Service
}

// NewMedicationHandler creates a new medication handler.
func NewMedicationHandler(service *medication.Service) *MedicationHandler {
	return &MedicationHandler{service: service}
}

// Create handles POST /medications.
func (h *MedicationHandler) Create(c *gin.Context) {
	var req dto.CreateMedicationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	med := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), med); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, med.ID)
}

// GetByID handles GET /medications/:id.
func (h *MedicationHandler) GetByID(c *gin.Context) {
	medID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	med, err := h.service.GetByID(c.Request.Context(), medID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMedication(med))
}

// List handles GET /medications.
func (h *MedicationHandler) List(c *gin.Context) {
	var req dto.ListMedicationsRequest
	if !h.BindQuery(c, &req) {
		return
	}

	result, err := h.service.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.MedicationResponse, len(result.Items))
	for i, med := range result.Items {
		items[i] = dto.FromMedication(med)
	}

	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Update handles PUT /medications/:id.
func (h *MedicationHandler) Update(c *gin.Context) {
	medID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateMedicationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	med, err := h.service.GetByID(c.Request.Context(), medID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(med)
	if err := h.service.Update(c.Request.Context(), med); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMedication(med))
}

// Delete handles DELETE /medications/:id.
func (h *MedicationHandler) Delete(c *gin.Context) {
	medID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), medID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
