package handlers

import (
	"github.com/gin-gonic/gin"

	"botiquin/internal/domain/patient"
	"botiquin/internal/domain/prescription"
	"botiquin/internal/infrastructure/http/v1/dto"
)

// PatientHandler handles patient directory endpoints.
type PatientHandler struct {
	BaseHandler
	service       *patient.Service
	prescriptions *prescription.Service
}

// NewPatientHandler creates a new patient handler.
func NewPatientHandler(service *patient.Service, prescriptions *prescription.Service) *PatientHandler {
	return &PatientHandler{service: service, prescriptions: prescriptions}
}

// Create handles POST /patients.
func (h *PatientHandler) Create(c *gin.Context) {
	var req dto.CreatePatientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, p.ID)
}

// GetByID handles GET /patients/:id.
func (h *PatientHandler) GetByID(c *gin.Context) {
	patientID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), patientID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPatient(p))
}

// List handles GET /patients.
func (h *PatientHandler) List(c *gin.Context) {
	var req dto.ListPatientsRequest
	if !h.BindQuery(c, &req) {
		return
	}

	result, err := h.service.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.PatientResponse, len(result.Items))
	for i, p := range result.Items {
		items[i] = dto.FromPatient(p)
	}

	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Update handles PUT /patients/:id.
func (h *PatientHandler) Update(c *gin.Context) {
	patientID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdatePatientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), patientID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(p)
	if err := h.service.Update(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPatient(p))
}

// Delete handles DELETE /patients/:id (discharge).
func (h *PatientHandler) Delete(c *gin.Context) {
	patientID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), patientID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Prescriptions handles GET /patients/:id/prescriptions.
func (h *PatientHandler) Prescriptions(c *gin.Context) {
	patientID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	// Ensure the patient exists so an unknown id is a 404, not an empty list.
	if _, err := h.service.GetByID(c.Request.Context(), patientID); err != nil {
		h.Error(c, err)
		return
	}

	limit := h.ParseIntQuery(c, "limit", 0)
	offset := h.ParseIntQuery(c, "offset", 0)

	records, err := h.prescriptions.ListByPatient(c.Request.Context(), patientID, limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.PrescriptionResponse, len(records))
	for i, rec := range records {
		items[i] = dto.FromPrescription(rec)
	}
	h.OK(c, gin.H{"items": items})
}
