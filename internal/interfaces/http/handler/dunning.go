package handler

import (
	billingapp "github.com/crm/invoicing/internal/application/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DunningHandler handles payment reminder API endpoints
type DunningHandler struct {
	BaseHandler
	dunningService *billingapp.DunningService
}

// NewDunningHandler creates a new DunningHandler
func NewDunningHandler(dunningService *billingapp.DunningService) *DunningHandler {
	return &DunningHandler{
		dunningService: dunningService,
	}
}

// Create creates a payment reminder for an overdue invoice
func (h *DunningHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req billingapp.CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.dunningService.CreateReminder(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Get returns a payment reminder by ID
func (h *DunningHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	dunningID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reminder ID")
		return
	}

	result, err := h.dunningService.GetReminder(c.Request.Context(), tenantID, dunningID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// List returns payment reminders matching the query filters
func (h *DunningHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter billingapp.DunningListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	results, total, err := h.dunningService.ListReminders(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, results, total, filter.Page, filter.PageSize)
}

// ListByInvoice returns all reminders for an invoice
func (h *DunningHandler) ListByInvoice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	results, err := h.dunningService.ListRemindersByInvoice(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, results)
}

// Send delivers a pending reminder
func (h *DunningHandler) Send(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	dunningID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reminder ID")
		return
	}

	result, err := h.dunningService.SendReminder(c.Request.Context(), tenantID, dunningID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Cancel withdraws a pending reminder
func (h *DunningHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	dunningID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reminder ID")
		return
	}

	result, err := h.dunningService.CancelReminder(c.Request.Context(), tenantID, dunningID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// RegisterRoutes registers dunning routes
func (h *DunningHandler) RegisterRoutes(rg *gin.RouterGroup) {
	dunnings := rg.Group("/billing/dunnings")
	{
		dunnings.POST("", h.Create)
		dunnings.GET("", h.List)
		dunnings.GET("/:id", h.Get)
		dunnings.POST("/:id/send", h.Send)
		dunnings.POST("/:id/cancel", h.Cancel)
	}

	rg.GET("/billing/invoices/:id/dunnings", h.ListByInvoice)
}
