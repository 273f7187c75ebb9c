package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ahrav/go-sumbench/internal/application"
	"github.com/ahrav/go-sumbench/internal/domain"
)

// defaultTestTemperature applies when a single-summary request omits it.
const defaultTestTemperature = 0.7

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "sumbench"})
}

func (s *Server) compare(c *gin.Context) {
	req := domain.ComparisonRequest{Config: domain.DefaultGenerationConfig()}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: []string{err.Error()}})
		return
	}

	result, err := s.service.Compare(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) summarize(c *gin.Context) {
	req := application.SingleSummaryRequest{Temperature: defaultTestTemperature}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: []string{err.Error()}})
		return
	}

	result, err := s.service.SummarizeOnce(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) settings(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Settings())
}

func (s *Server) models(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Models())
}

// writeError maps service errors onto status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: verr.Errors})
	case errors.Is(err, domain.ErrAllProvidersUnreachable):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrTie):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Details: []string{err.Error()}})
	}
}
