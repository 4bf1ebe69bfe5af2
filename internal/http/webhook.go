package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/service"
)

const hottokHeader = "X-Hotmart-Hottok"

// hotmartWebhook accepts Hotmart purchase notifications. Events the service
// chooses to ignore still answer 200 so Hotmart stops retrying them.
func (h *Handler) hotmartWebhook(c *gin.Context) {
	token := c.GetHeader(hottokHeader)
	if token == "" {
		token = c.Query("hottok")
	}

	var evt service.HotmartEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	result, err := h.svc.Purchases.HandleHotmart(c.Request.Context(), token, evt)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"event":       evt.Event,
		"transaction": evt.Data.Purchase.Transaction,
		"action":      result.Action,
		"user_id":     result.UserID,
		"new_account": result.TemporaryPassword != "",
	}).Info("hotmart webhook processed")

	c.JSON(http.StatusOK, gin.H{"action": result.Action, "user_id": result.UserID})
}
