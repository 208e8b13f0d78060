package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type debugStatusRequest struct {
	ExternalID string `json:"external_id"`
}

// DebugProviderMapping shows how internal service/country codes translate
// for the provider, including whether a fallback kicked in.
func (s *Server) DebugProviderMapping(c *gin.Context) {
	resolved, err := s.providers.ResolveMapping(c.Param("provider"), c.Query("service"), c.Query("country"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resolved})
}

// DebugProviderStatus asks the provider for a rental by id without touching
// any stored row.
func (s *Server) DebugProviderStatus(c *gin.Context) {
	var req debugStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		AbortWithError(c, newValidationError("external_id", "invalid_external_id", "external_id is required"))
		return
	}

	status, err := s.providers.RawStatus(c.Request.Context(), c.Param("provider"), externalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}
