package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/smsrent/internal/observability/logger"
	webhookdomain "github.com/smallbiznis/smsrent/internal/webhook/domain"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// Webhook handlers answer 200 whatever happens to the SMS. Providers retry
// on anything else, and a broken row would be retried forever.

func (s *Server) HandleGenericWebhook(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"data": webhookdomain.Result{Outcome: webhookdomain.OutcomeInvalid, Error: "unreadable body"}})
		return
	}

	res := s.webhooks.IngestGeneric(c.Request.Context(), payload)
	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (s *Server) HandleProviderWebhook(c *gin.Context) {
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))
	payload, ok := readWebhookBody(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"data": webhookdomain.Result{Outcome: webhookdomain.OutcomeInvalid, Provider: provider, Error: "unreadable body"}})
		return
	}

	res := s.webhooks.Ingest(c.Request.Context(), provider, payload, c.Request.Header)
	c.JSON(http.StatusOK, gin.H{"data": res})
}

func readWebhookBody(c *gin.Context) ([]byte, bool) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn("webhook body read failed", zap.Error(err))
		return nil, false
	}
	return payload, true
}
