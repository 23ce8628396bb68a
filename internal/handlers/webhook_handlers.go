package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/01moynul/creator-commerce/internal/webhooks"
)

const maxWebhookBody = 1 << 20

//
// --- Gateway Webhook Handler ---
//

// HandlePayPalWebhook is the handler for POST /v1/webhooks/paypal
func (h *Handlers) HandlePayPalWebhook(c *gin.Context) {
	// 1. --- Read Raw Body ---
	// Verification needs the exact bytes the gateway signed.
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	// 2. --- Verify Signature ---
	ok, err := h.Gateway.VerifyWebhookSignature(c.Request.Context(), c.Request.Header, raw)
	if err != nil {
		h.Log.WithError(err).Error("webhook verification failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify webhook signature"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook signature"})
		return
	}

	// 3. --- Parse Event ---
	ev, err := webhooks.ParseEvent(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	// 4. --- Dispatch ---
	outcome, err := h.Dispatcher.Dispatch(c.Request.Context(), ev)
	if err != nil {
		h.Log.WithError(err).WithFields(logrus.Fields{
			"event_id":   ev.ID,
			"event_type": ev.Type,
		}).Error("webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
		return
	}

	h.Log.WithFields(logrus.Fields{
		"event_id":   ev.ID,
		"event_type": ev.Type,
		"outcome":    outcome,
	}).Info("webhook handled")

	// 5. --- Acknowledge ---
	c.JSON(http.StatusOK, gin.H{"received": true})
}
