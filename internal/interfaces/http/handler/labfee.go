package handler

import (
	labfeeapp "github.com/clinic/backend/internal/application/labfee"
	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/clinic/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LabFeeHandler handles worksheet and technician record API endpoints
type LabFeeHandler struct {
	BaseHandler
	service     *labfeeapp.ReconciliationService
	attachments *labfeeapp.AttachmentService
}

// NewLabFeeHandler creates a new LabFeeHandler
func NewLabFeeHandler(service *labfeeapp.ReconciliationService, attachments *labfeeapp.AttachmentService) *LabFeeHandler {
	return &LabFeeHandler{
		service:     service,
		attachments: attachments,
	}
}

// ===================== Request/Response DTOs =====================

// WorksheetQuery represents worksheet query parameters
//
//	@Description	Worksheet query
type WorksheetQuery struct {
	Month string `form:"month" binding:"required" example:"2026-02"`
	Lab   string `form:"lab" example:"Smile Dental Lab"`
}

// SaveCategoriesRequest represents a batch category save
//
//	@Description	Batch category save request
type SaveCategoriesRequest struct {
	Month   string                     `json:"month" binding:"required" example:"2026-02"`
	Lab     string                     `json:"lab" example:"Smile Dental Lab"`
	Changes []labfeeapp.CategoryChange `json:"changes" binding:"required"`
}

// SummaryQuery represents monthly summary query parameters
//
//	@Description	Monthly summary query
type SummaryQuery struct {
	Month string `form:"month" binding:"required" example:"2026-02"`
}

// PrepareAttachmentRequest represents a receipt upload presign request
//
//	@Description	Receipt upload presign request
type PrepareAttachmentRequest struct {
	RecordID    uuid.UUID `json:"record_id" binding:"required"`
	Filename    string    `json:"filename" binding:"required" example:"delivery-slip.jpg"`
	ContentType string    `json:"content_type" binding:"required" example:"image/jpeg"`
}

// ConfirmAttachmentRequest links an uploaded receipt to its record
//
//	@Description	Receipt attach request
type ConfirmAttachmentRequest struct {
	RecordID   uuid.UUID `json:"record_id" binding:"required"`
	StorageKey string    `json:"storage_key" binding:"required"`
}

// AttachmentKeyQuery carries a storage key for download or delete
//
//	@Description	Receipt storage key query
type AttachmentKeyQuery struct {
	Key string `form:"key" binding:"required"`
}

// ===================== Worksheet =====================

// GetWorksheet godoc
// @ID           getLabFeeWorksheet
//
//	@Summary		Get reconciliation worksheet
//	@Description	Fetch the clinic month from the ledger, join it with technician records and return the derived view
//	@Tags			labfees
//	@Produce		json
//	@Param			month	query		string	true	"Worksheet month (YYYY-MM)"
//	@Param			lab		query		string	false	"Laboratory name, or all when omitted"
//	@Success		200		{object}	APIResponse[labfeeapp.WorksheetResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/labfees/worksheet [get]
func (h *LabFeeHandler) GetWorksheet(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	var query WorksheetQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	month, err := ledger.ParseYearMonth(query.Month)
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "month", Message: "must be formatted as YYYY-MM"}})
		return
	}

	worksheet, err := h.service.LoadWorksheet(c.Request.Context(), clinicID, month, query.Lab)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, worksheet)
}

// SaveCategories godoc
// @ID           saveLabFeeCategories
//
//	@Summary		Save category attributions in batch
//	@Description	Commit a batch of attribution changes and return per-row outcomes plus the rebuilt worksheet
//	@Tags			labfees
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SaveCategoriesRequest	true	"Batch category save"
//	@Success		200		{object}	APIResponse[labfeeapp.SaveCategoriesResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/labfees/categories:batch [post]
func (h *LabFeeHandler) SaveCategories(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	var req SaveCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	month, err := ledger.ParseYearMonth(req.Month)
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "month", Message: "must be formatted as YYYY-MM"}})
		return
	}

	result, err := h.service.SaveCategories(c.Request.Context(), clinicID, month, req.Lab, req.Changes)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// SaveOrder godoc
// @ID           saveLabFeeOrder
//
//	@Summary		Save an itemized order for a worksheet row
//	@Description	Replace the row's order lines, discount and note, re-deriving the row fee
//	@Tags			labfees
//	@Accept			json
//	@Produce		json
//	@Param			rowId	path		string							true	"Worksheet row ID"
//	@Param			request	body		labfeeapp.SaveOrderRequest	true	"Order save"
//	@Success		200		{object}	APIResponse[labfeeapp.DerivedRowResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/labfees/rows/{rowId}/order [put]
func (h *LabFeeHandler) SaveOrder(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	rowID := c.Param("rowId")
	if rowID == "" {
		h.BadRequest(c, "Row ID is required")
		return
	}

	var req labfeeapp.SaveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	row, err := h.service.SaveOrder(c.Request.Context(), clinicID, rowID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, row)
}

// ===================== Manual records =====================

// AddManualRecord godoc
// @ID           addManualLabFeeRecord
//
//	@Summary		Add a manual adjustment record
//	@Description	Create a standalone technician record not linked to any ledger row and return the remerged worksheet
//	@Tags			labfees
//	@Accept			json
//	@Produce		json
//	@Param			request	body		labfeeapp.AddManualRecordRequest	true	"Manual record"
//	@Success		201		{object}	APIResponse[labfeeapp.ManualRecordResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/labfees/manual [post]
func (h *LabFeeHandler) AddManualRecord(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	var req labfeeapp.AddManualRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.AddManualRecord(c.Request.Context(), clinicID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// DeleteManualRecord godoc
// @ID           deleteManualLabFeeRecord
//
//	@Summary		Delete a manual adjustment record
//	@Description	Remove a manual technician record. Ledger-linked records cannot be deleted this way.
//	@Tags			labfees
//	@Produce		json
//	@Param			id	path	string	true	"Record ID"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/labfees/manual/{id} [delete]
func (h *LabFeeHandler) DeleteManualRecord(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid record ID")
		return
	}

	if err := h.service.DeleteManualRecord(c.Request.Context(), clinicID, id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// ===================== Summary =====================

// GetSummary godoc
// @ID           getLabFeeSummary
//
//	@Summary		Get monthly payables summary
//	@Description	Aggregate the month's lab fees per laboratory across linked and manual records
//	@Tags			labfees
//	@Produce		json
//	@Param			month	query		string	true	"Summary month (YYYY-MM)"
//	@Success		200		{object}	APIResponse[labfeeapp.MonthlySummaryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/labfees/summary [get]
func (h *LabFeeHandler) GetSummary(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	var query SummaryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	month, err := ledger.ParseYearMonth(query.Month)
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "month", Message: "must be formatted as YYYY-MM"}})
		return
	}

	summary, err := h.service.MonthlySummary(c.Request.Context(), clinicID, month)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

// ===================== Attachments =====================

// PrepareAttachment godoc
// @ID           prepareLabFeeAttachment
//
//	@Summary		Prepare a receipt upload
//	@Description	Validate the file type and return a presigned upload URL scoped to the clinic and record
//	@Tags			labfees
//	@Accept			json
//	@Produce		json
//	@Param			request	body		PrepareAttachmentRequest	true	"Upload presign request"
//	@Success		200		{object}	APIResponse[labfeeapp.ReceiptUploadResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/labfees/attachments [post]
func (h *LabFeeHandler) PrepareAttachment(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	var req PrepareAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	upload, err := h.attachments.PrepareReceiptUpload(c.Request.Context(), clinicID, req.RecordID, req.Filename, req.ContentType)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, upload)
}

// ConfirmAttachment godoc
// @ID           confirmLabFeeAttachment
//
//	@Summary		Link an uploaded receipt to its record
//	@Description	Store the uploaded file's key on the technician record after the client finishes the upload
//	@Tags			labfees
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ConfirmAttachmentRequest	true	"Attach request"
//	@Success		200		{object}	APIResponse[labfeeapp.TechnicianRecordResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/labfees/attachments/confirm [post]
func (h *LabFeeHandler) ConfirmAttachment(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	var req ConfirmAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.service.AttachReceipt(c.Request.Context(), clinicID, req.RecordID, req.StorageKey)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// GetAttachmentURL godoc
// @ID           getLabFeeAttachmentURL
//
//	@Summary		Get a receipt download URL
//	@Description	Return a short-lived presigned download URL for a stored receipt
//	@Tags			labfees
//	@Produce		json
//	@Param			key	query		string	true	"Receipt storage key"
//	@Success		200	{object}	APIResponse[labfeeapp.ReceiptDownloadResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/labfees/attachments/download [get]
func (h *LabFeeHandler) GetAttachmentURL(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	var query AttachmentKeyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	download, err := h.attachments.ReceiptDownloadURL(c.Request.Context(), clinicID, query.Key)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, download)
}

// DeleteAttachment godoc
// @ID           deleteLabFeeAttachment
//
//	@Summary		Delete a stored receipt
//	@Description	Remove the receipt object from storage. Missing objects are treated as already deleted.
//	@Tags			labfees
//	@Produce		json
//	@Param			key	query	string	true	"Receipt storage key"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/labfees/attachments [delete]
func (h *LabFeeHandler) DeleteAttachment(c *gin.Context) {
	clinicID, err := getClinicID(c)
	if err != nil || clinicID == uuid.Nil {
		h.Unauthorized(c, "Invalid clinic")
		return
	}

	var query AttachmentKeyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.attachments.DeleteReceipt(c.Request.Context(), clinicID, query.Key); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers all lab fee routes
func (h *LabFeeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	labfees := rg.Group("/labfees")
	{
		labfees.GET("/worksheet", h.GetWorksheet)
		labfees.GET("/summary", h.GetSummary)
		labfees.GET("/attachments/download", h.GetAttachmentURL)

		write := labfees.Group("", middleware.RequirePermission("labfee:write"))
		{
			write.POST("/categories:batch", h.SaveCategories)
			write.PUT("/rows/:rowId/order", h.SaveOrder)

			write.POST("/manual", h.AddManualRecord)
			write.DELETE("/manual/:id", h.DeleteManualRecord)

			write.POST("/attachments", h.PrepareAttachment)
			write.POST("/attachments/confirm", h.ConfirmAttachment)
			write.DELETE("/attachments", h.DeleteAttachment)
		}
	}
}
