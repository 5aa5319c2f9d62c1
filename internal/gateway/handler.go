package gateway

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"gateway/internal/logger"
	"gateway/internal/optout"
	"gateway/internal/template"
	"gateway/pkg/errors"
	"gateway/pkg/models"
)

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

// Handler exposes the gateway facade over HTTP: sends, estimates,
// diagnostics, account and template management, and the provider webhook
// endpoints.
type Handler struct {
	BaseHandler
	service   *Service
	webhooks  *WebhookService
	accounts  AccountRepository
	templates *template.Service
	optOuts   *optout.Service
}

func NewHandler(service *Service, webhooks *WebhookService, accounts AccountRepository, templates *template.Service, optOuts *optout.Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		service:     service,
		webhooks:    webhooks,
		accounts:    accounts,
		templates:   templates,
		optOuts:     optOuts,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		messages := v1.Group("/messages")
		{
			messages.POST("/send", h.Send)
			messages.POST("/send-template", h.SendTemplate)
			messages.POST("/estimate", h.EstimateCost)
		}

		accounts := v1.Group("/accounts")
		{
			accounts.POST("", h.CreateAccount)
			accounts.GET("", h.ListAccounts)
			accounts.GET("/:id/health", h.GetHealth)
			accounts.GET("/:id/ratelimit", h.GetRateLimitStatus)
			accounts.GET("/:id/capabilities", h.GetCapabilities)
			accounts.POST("/:id/media", h.UploadMedia)
			accounts.GET("/:id/media/:media_id", h.DownloadMedia)
		}

		templates := v1.Group("/templates")
		{
			templates.POST("", h.CreateTemplate)
			templates.GET("", h.ListTemplates)
			templates.PUT("/:id/status", h.UpdateTemplateStatus)
			templates.DELETE("/:id", h.DeleteTemplate)
		}

		optouts := v1.Group("/optouts")
		{
			optouts.POST("", h.AddOptOut)
			optouts.DELETE("", h.RemoveOptOut)
		}
	}

	webhooks := router.Group("/webhooks/:channel/:account_id")
	{
		webhooks.POST("/inbound", h.InboundWebhook)
		webhooks.POST("/status", h.StatusWebhook)
	}
}

type sendRequest struct {
	ChannelAccountID string                    `json:"channel_account_id" binding:"required"`
	Message          *models.NormalizedMessage `json:"message" binding:"required"`
}

func (h *Handler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	result, err := h.service.Send(c.Request.Context(), req.ChannelAccountID, req.Message)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(resultStatus(result), result)
}

type sendTemplateRequest struct {
	ChannelAccountID string            `json:"channel_account_id" binding:"required"`
	TemplateID       string            `json:"template_id" binding:"required"`
	Variables        map[string]string `json:"variables"`
	Recipient        string            `json:"recipient" binding:"required"`
}

func (h *Handler) SendTemplate(c *gin.Context) {
	var req sendTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	result, err := h.service.SendTemplate(c.Request.Context(), req.ChannelAccountID, req.TemplateID, req.Variables, req.Recipient)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(resultStatus(result), result)
}

// resultStatus keeps rejections visible to HTTP clients without conflating
// them with transport errors: the pipeline's structured result rides on 200
// for accepted sends and 422 for business rejections.
func resultStatus(result *Result) int {
	if result.Success {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func (h *Handler) EstimateCost(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	estimate, err := h.service.EstimateCost(c.Request.Context(), req.ChannelAccountID, req.Message)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, estimate)
}

func (h *Handler) CreateAccount(c *gin.Context) {
	var account models.ChannelAccount
	if err := c.ShouldBindJSON(&account); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}
	if !account.Type.Valid() {
		h.HandleError(c, errors.ErrValidation.WithDetail("message", "unknown channel type"))
		return
	}

	if err := h.accounts.Create(c.Request.Context(), &account); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *Handler) ListAccounts(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		h.HandleError(c, errors.ErrValidation.WithDetail("message", "tenant_id is required"))
		return
	}

	accounts, err := h.accounts.List(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health, err := h.service.GetHealth(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel_account_id": c.Param("id"), "health_status": health})
}

func (h *Handler) GetRateLimitStatus(c *gin.Context) {
	overview, err := h.service.GetRateLimitStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *Handler) GetCapabilities(c *gin.Context) {
	caps, err := h.service.GetCapabilities(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel_account_id": c.Param("id"), "capabilities": caps})
}

type uploadMediaRequest struct {
	Data     string `json:"data" binding:"required"`
	MimeType string `json:"mime_type" binding:"required"`
}

// UploadMedia pushes media to the provider behind the account. Only channels
// whose provider stores media server-side accept it; the rest answer
// UNSUPPORTED_CAPABILITY.
func (h *Handler) UploadMedia(c *gin.Context) {
	var req uploadMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		h.HandleError(c, errors.ErrValidation.WithDetail("message", "data must be base64 encoded"))
		return
	}

	mediaID, err := h.service.UploadMedia(c.Request.Context(), c.Param("id"), data, req.MimeType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"media_id": mediaID})
}

func (h *Handler) DownloadMedia(c *gin.Context) {
	data, mimeType, err := h.service.DownloadMedia(c.Request.Context(), c.Param("id"), c.Param("media_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Data(http.StatusOK, mimeType, data)
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var tmpl models.Template
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	if err := h.templates.Create(c.Request.Context(), &tmpl); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	channel := models.ChannelType(c.Query("channel_type"))
	if tenantID == "" || !channel.Valid() {
		h.HandleError(c, errors.ErrValidation.WithDetail("message", "tenant_id and a valid channel_type are required"))
		return
	}

	templates, err := h.templates.List(c.Request.Context(), tenantID, channel)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

type updateTemplateStatusRequest struct {
	TenantID string                `json:"tenant_id" binding:"required"`
	Status   models.TemplateStatus `json:"status" binding:"required"`
}

func (h *Handler) UpdateTemplateStatus(c *gin.Context) {
	var req updateTemplateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	if err := h.templates.UpdateStatus(c.Request.Context(), req.TenantID, c.Param("id"), req.Status); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template_id": c.Param("id"), "status": req.Status})
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		h.HandleError(c, errors.ErrValidation.WithDetail("message", "tenant_id is required"))
		return
	}

	if err := h.templates.Delete(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type optOutRequest struct {
	ChannelType models.ChannelType `json:"channel_type" binding:"required"`
	Recipient   string             `json:"recipient" binding:"required"`
}

func (h *Handler) AddOptOut(c *gin.Context) {
	var req optOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}
	if !req.ChannelType.Valid() {
		h.HandleError(c, errors.ErrValidation.WithDetail("message", "unknown channel type"))
		return
	}

	if err := h.optOuts.AddOptOut(c.Request.Context(), req.ChannelType, req.Recipient, optout.SourceAPI); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, optout.NewEntry(req.ChannelType, req.Recipient, optout.SourceAPI))
}

func (h *Handler) RemoveOptOut(c *gin.Context) {
	var req optOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	if err := h.optOuts.RemoveOptOut(c.Request.Context(), req.ChannelType, req.Recipient, optout.SourceAPI); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) InboundWebhook(c *gin.Context) {
	channel := models.ChannelType(c.Param("channel"))
	if !channel.Valid() {
		h.HandleError(c, errors.ErrValidation.WithDetail("message", "unknown channel type"))
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	msg, err := h.webhooks.HandleInbound(c.Request.Context(), channel, c.Param("account_id"), payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": msg.ID})
}

func (h *Handler) StatusWebhook(c *gin.Context) {
	channel := models.ChannelType(c.Param("channel"))
	if !channel.Valid() {
		h.HandleError(c, errors.ErrValidation.WithDetail("message", "unknown channel type"))
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	update, err := h.webhooks.HandleStatus(c.Request.Context(), channel, c.Param("account_id"), payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"external_id": update.ExternalID, "status": update.Status})
}
