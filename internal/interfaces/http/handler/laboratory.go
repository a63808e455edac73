package handler

import (
	laboratoryapp "github.com/clinic/backend/internal/application/laboratory"
	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/clinic/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LaboratoryHandler handles dental laboratory API endpoints
type LaboratoryHandler struct {
	BaseHandler
	service *laboratoryapp.LaboratoryService
}

// NewLaboratoryHandler creates a new LaboratoryHandler
func NewLaboratoryHandler(service *laboratoryapp.LaboratoryService) *LaboratoryHandler {
	return &LaboratoryHandler{service: service}
}

// PricingPreviewQuery represents pricing preview query parameters
//
//	@Description	Pricing preview query
type PricingPreviewQuery struct {
	EntryID string `form:"entry_id" binding:"required"`
	Revenue string `form:"revenue" binding:"required" example:"1200.00"`
}

// ListLaboratories godoc
// @ID           listLaboratories
//
//	@Summary		List laboratories
//	@Description	Get the clinic's registered dental laboratories
//	@Tags			laboratories
//	@Produce		json
//	@Param			search		query		string	false	"Search keyword"
//	@Param			active_only	query		bool	false	"Only active laboratories"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Success		200			{object}	APIResponse[[]laboratoryapp.LaboratoryResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/laboratories [get]
func (h *LaboratoryHandler) ListLaboratories(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	var filter laboratoryapp.LaboratoryListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	labs, err := h.service.ListLaboratories(c.Request.Context(), clinicID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, labs)
}

// GetLaboratory godoc
// @ID           getLaboratory
//
//	@Summary		Get a laboratory
//	@Tags			laboratories
//	@Produce		json
//	@Param			id	path		string	true	"Laboratory ID"
//	@Success		200	{object}	APIResponse[laboratoryapp.LaboratoryResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/laboratories/{id} [get]
func (h *LaboratoryHandler) GetLaboratory(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID")
		return
	}

	lab, err := h.service.GetLaboratory(c.Request.Context(), clinicID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lab)
}

// CreateLaboratory godoc
// @ID           createLaboratory
//
//	@Summary		Register a laboratory
//	@Description	Register a dental laboratory. Names are unique per clinic.
//	@Tags			laboratories
//	@Accept			json
//	@Produce		json
//	@Param			request	body		laboratoryapp.CreateLaboratoryRequest	true	"Laboratory"
//	@Success		201		{object}	APIResponse[laboratoryapp.LaboratoryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/laboratories [post]
func (h *LaboratoryHandler) CreateLaboratory(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	var req laboratoryapp.CreateLaboratoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lab, err := h.service.CreateLaboratory(c.Request.Context(), clinicID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, lab)
}

// UpdateLaboratory godoc
// @ID           updateLaboratory
//
//	@Summary		Update a laboratory
//	@Tags			laboratories
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string									true	"Laboratory ID"
//	@Param			request	body		laboratoryapp.UpdateLaboratoryRequest	true	"Laboratory"
//	@Success		200		{object}	APIResponse[laboratoryapp.LaboratoryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/laboratories/{id} [put]
func (h *LaboratoryHandler) UpdateLaboratory(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID")
		return
	}

	var req laboratoryapp.UpdateLaboratoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lab, err := h.service.UpdateLaboratory(c.Request.Context(), clinicID, id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lab)
}

// ActivateLaboratory godoc
// @ID           activateLaboratory
//
//	@Summary		Re-enable a laboratory
//	@Tags			laboratories
//	@Produce		json
//	@Param			id	path		string	true	"Laboratory ID"
//	@Success		200	{object}	APIResponse[laboratoryapp.LaboratoryResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/laboratories/{id}/activate [post]
func (h *LaboratoryHandler) ActivateLaboratory(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID")
		return
	}

	lab, err := h.service.ActivateLaboratory(c.Request.Context(), clinicID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lab)
}

// DeactivateLaboratory godoc
// @ID           deactivateLaboratory
//
//	@Summary		Deactivate a laboratory
//	@Description	Hide a laboratory from new work. Existing records keep referencing it.
//	@Tags			laboratories
//	@Produce		json
//	@Param			id	path		string	true	"Laboratory ID"
//	@Success		200	{object}	APIResponse[laboratoryapp.LaboratoryResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/laboratories/{id}/deactivate [post]
func (h *LaboratoryHandler) DeactivateLaboratory(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID")
		return
	}

	lab, err := h.service.DeactivateLaboratory(c.Request.Context(), clinicID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lab)
}

// ===================== Pricing entries =====================

// AddPricingEntry godoc
// @ID           addPricingEntry
//
//	@Summary		Add a price-list entry
//	@Tags			laboratories
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string								true	"Laboratory ID"
//	@Param			request	body		laboratoryapp.PricingEntryRequest	true	"Pricing entry"
//	@Success		201		{object}	APIResponse[laboratoryapp.LaboratoryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/laboratories/{id}/pricing [post]
func (h *LaboratoryHandler) AddPricingEntry(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	labID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID")
		return
	}

	var req laboratoryapp.PricingEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lab, err := h.service.AddPricingEntry(c.Request.Context(), clinicID, labID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, lab)
}

// UpdatePricingEntry godoc
// @ID           updatePricingEntry
//
//	@Summary		Update a price-list entry
//	@Description	Replace a price-list entry. Order lines already placed keep their snapshot prices.
//	@Tags			laboratories
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string								true	"Laboratory ID"
//	@Param			entryId	path		string								true	"Pricing entry ID"
//	@Param			request	body		laboratoryapp.PricingEntryRequest	true	"Pricing entry"
//	@Success		200		{object}	APIResponse[laboratoryapp.LaboratoryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/laboratories/{id}/pricing/{entryId} [put]
func (h *LaboratoryHandler) UpdatePricingEntry(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	labID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID")
		return
	}
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		h.BadRequest(c, "Invalid pricing entry ID")
		return
	}

	var req laboratoryapp.PricingEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lab, err := h.service.UpdatePricingEntry(c.Request.Context(), clinicID, labID, entryID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lab)
}

// RemovePricingEntry godoc
// @ID           removePricingEntry
//
//	@Summary		Remove a price-list entry
//	@Tags			laboratories
//	@Produce		json
//	@Param			id		path	string	true	"Laboratory ID"
//	@Param			entryId	path	string	true	"Pricing entry ID"
//	@Success		200	{object}	APIResponse[laboratoryapp.LaboratoryResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/laboratories/{id}/pricing/{entryId} [delete]
func (h *LaboratoryHandler) RemovePricingEntry(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	labID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID")
		return
	}
	entryID, err := uuid.Parse(c.Param("entryId"))
	if err != nil {
		h.BadRequest(c, "Invalid pricing entry ID")
		return
	}

	lab, err := h.service.RemovePricingEntry(c.Request.Context(), clinicID, labID, entryID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lab)
}

// PreviewPricing godoc
// @ID           previewPricing
//
//	@Summary		Preview an entry's unit price
//	@Description	Resolve a price-list entry against a revenue without writing anything
//	@Tags			laboratories
//	@Produce		json
//	@Param			id			path		string	true	"Laboratory ID"
//	@Param			entry_id	query		string	true	"Pricing entry ID"
//	@Param			revenue		query		string	true	"Row revenue"
//	@Success		200			{object}	APIResponse[laboratoryapp.PricingPreviewResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/laboratories/{id}/pricing/preview [get]
func (h *LaboratoryHandler) PreviewPricing(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	labID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid laboratory ID")
		return
	}

	var query PricingPreviewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	entryID, err := uuid.Parse(query.EntryID)
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "entry_id", Message: "Invalid UUID format"}})
		return
	}
	revenue, err := decimal.NewFromString(query.Revenue)
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "revenue", Message: "must be a decimal number"}})
		return
	}

	preview, err := h.service.PreviewPricing(c.Request.Context(), clinicID, labID, entryID, revenue)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, preview)
}

// RegisterRoutes registers all laboratory routes
func (h *LaboratoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	labs := rg.Group("/laboratories")
	{
		labs.GET("", h.ListLaboratories)
		labs.GET("/:id", h.GetLaboratory)
		labs.GET("/:id/pricing/preview", h.PreviewPricing)

		write := labs.Group("", middleware.RequirePermission("laboratory:write"))
		{
			write.POST("", h.CreateLaboratory)
			write.PUT("/:id", h.UpdateLaboratory)
			write.POST("/:id/activate", h.ActivateLaboratory)
			write.POST("/:id/deactivate", h.DeactivateLaboratory)

			write.POST("/:id/pricing", h.AddPricingEntry)
			write.PUT("/:id/pricing/:entryId", h.UpdatePricingEntry)
			write.DELETE("/:id/pricing/:entryId", h.RemovePricingEntry)
		}
	}
}
