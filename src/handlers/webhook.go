package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/webhook-inbox/src/logging"
	"github.com/khabaroff/webhook-inbox/src/middleware"
	"github.com/khabaroff/webhook-inbox/src/services"
)

// Signature headers, checked in order
const (
	SignatureHeader        = "X-Signature"
	WebhookSignatureHeader = "X-Webhook-Signature"
	maxProviderNameLength  = 64
)

// WebhookProcessor is the service side of a webhook call
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, input services.WebhookInput) (*services.IngestResult, error)
}

// WebhookHandler handles webhook POST requests
type WebhookHandler struct {
	service WebhookProcessor
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleWebhook receives POST /webhooks/:provider
func (wh *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")
	if provider == "" || len(provider) > maxProviderNameLength {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid provider"})
		return
	}

	body, ok := middleware.GetRawBody(c)
	if !ok {
		var err error
		body, err = c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "failed to read request body"})
			return
		}
	}

	signature := c.GetHeader(SignatureHeader)
	if signature == "" {
		signature = c.GetHeader(WebhookSignatureHeader)
	}

	result, err := wh.service.HandleWebhook(c.Request.Context(), services.WebhookInput{
		Provider:  provider,
		RawBody:   body,
		Signature: signature,
	})
	if err != nil {
		wh.writeError(c, provider, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

func (wh *WebhookHandler) writeError(c *gin.Context, provider string, err error) {
	logger := logging.ComponentLogger("webhook", middleware.GetRequestID(c)).
		With().Str("provider", provider).Logger()

	switch services.ErrorKind(err) {
	case services.KindInvalidSignature:
		logger.Warn().Msg("rejected webhook with invalid signature")
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid signature"})
	case services.KindInvalidPayload:
		logger.Warn().Err(err).Msg("rejected webhook with invalid payload")
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": payloadMessage(err)})
	default:
		logger.Error().Err(err).Msg("failed to handle webhook")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
	}
}

// payloadMessage strips the sentinel prefix, leaving the field-specific reason
func payloadMessage(err error) string {
	return strings.TrimPrefix(err.Error(), services.ErrInvalidPayload.Error()+": ")
}
