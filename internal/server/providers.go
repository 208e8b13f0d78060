package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/smsrent/internal/observability/logger"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"go.uber.org/zap"
)

type providerSummary struct {
	Name     string `json:"name"`
	Webhooks bool   `json:"webhooks"`
}

func (s *Server) ListProviders(c *gin.Context) {
	names := s.providers.Providers()
	out := make([]providerSummary, 0, len(names))
	for _, name := range names {
		_, err := s.providers.WebhookParser(name)
		out = append(out, providerSummary{Name: name, Webhooks: err == nil})
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *Server) GetProviderCatalog(c *gin.Context) {
	var query struct {
		Mode    string `form:"mode"`
		Country string `form:"country"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	mode, ok := providerdomain.ParseMode(strings.ToLower(strings.TrimSpace(query.Mode)))
	if !ok {
		AbortWithError(c, newValidationError("mode", "invalid_mode", "mode must be rent or activation"))
		return
	}

	catalog, err := s.providers.Catalog(c.Request.Context(), c.Param("provider"), providerdomain.CatalogRequest{
		Mode:    mode,
		Country: query.Country,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": catalog})
}

func (s *Server) ListProviderActive(c *gin.Context) {
	bookings, err := s.providers.ListActive(c.Request.Context(), c.Param("provider"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if bookings == nil {
		bookings = []providerdomain.Booking{}
	}

	c.JSON(http.StatusOK, gin.H{"data": bookings})
}

// SyncProvider reconciles every active row of the provider. Per-number
// failures are part of the report; only an unknown provider or a sync that is
// already running fails the request.
func (s *Server) SyncProvider(c *gin.Context) {
	report, err := s.reconcile.SyncProvider(c.Request.Context(), c.Param("provider"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if report.Failed > 0 {
		logger.FromContext(c.Request.Context()).Warn("provider sync had failures",
			zap.String("run_id", report.RunID),
			zap.Int("failed", report.Failed),
			zap.Int("total", report.Total),
		)
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
