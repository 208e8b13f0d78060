package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	phonedomain "github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	"github.com/smallbiznis/smsrent/pkg/db/pagination"
)

type rentNumberRequest struct {
	Provider  string `json:"provider"`
	Service   string `json:"service"`
	Country   string `json:"country"`
	Hours     int    `json:"hours"`
	AutoRenew bool   `json:"auto_renew"`
}

type extendRequest struct {
	Hours int `json:"hours"`
}

// RentNumber answers 201 for a new rental, 200 when the number was already
// stored and 202 when the provider order succeeded but the row could not be
// written.
func (s *Server) RentNumber(c *gin.Context) {
	var req rentNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.numbers.Rent(c.Request.Context(), phonedomain.RentRequest{
		Provider:  strings.TrimSpace(req.Provider),
		Service:   strings.TrimSpace(req.Service),
		Country:   strings.TrimSpace(req.Country),
		Hours:     req.Hours,
		AutoRenew: req.AutoRenew,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	switch resp.Status {
	case phonedomain.RentCreated:
		status = http.StatusCreated
	case phonedomain.RentPartialSuccess:
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"data": resp})
}

func (s *Server) ListPhoneNumbers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Provider string `form:"provider"`
		Status   string `form:"status"`
		Service  string `form:"service"`
		Country  string `form:"country"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.numbers.List(c.Request.Context(), phonedomain.ListRequest{
		Provider:  query.Provider,
		Status:    query.Status,
		Service:   query.Service,
		Country:   query.Country,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetPhoneNumber syncs the row against the provider before answering, so the
// response always carries the freshest messages. A failed provider call is
// reported inside the result, not as an HTTP error.
func (s *Server) GetPhoneNumber(c *gin.Context) {
	resp, err := s.reconcile.SyncNumber(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPhoneNumberMessages(c *gin.Context) {
	msgs, err := s.numbers.Messages(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

func (s *Server) CancelPhoneNumber(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.numbers.Cancel(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "cancelled": true}})
}

func (s *Server) ExtendPhoneNumber(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.numbers.Extend(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Hours)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolvePhoneNumber(c *gin.Context) {
	resp, err := s.reconcile.Resolve(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
