package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/pkg/domain"
)

// ValidateRequest carries a workflow config to check.
type ValidateRequest struct {
	Workflow *domain.WorkflowConfig `json:"workflow" binding:"required"`
}

// ValidateResponse reports structural findings for a workflow config.
// An empty findings list means the config is valid.
type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Findings []string `json:"findings"`
}

// SubmitRequest carries a workflow config and its evaluation cases.
type SubmitRequest struct {
	Workflow *domain.WorkflowConfig `json:"workflow" binding:"required"`
	Cases    []domain.IOCase        `json:"cases" binding:"required"`
}

// SubmitResponse acknowledges an accepted workflow submission.
type SubmitResponse struct {
	WorkflowID  string `json:"workflowId"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submittedAt"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": gin.H{
			"orchestrator": "ok",
		},
	})
}

// handleValidateWorkflow runs structural validation without submitting.
func (s *Server) handleValidateWorkflow(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	findings := s.orchestrator.Validate(req.Workflow)
	if findings == nil {
		findings = []string{}
	}

	c.JSON(http.StatusOK, ValidateResponse{
		Valid:    len(findings) == 0,
		Findings: findings,
	})
}

// handleSubmitWorkflow handles workflow submission
func (s *Server) handleSubmitWorkflow(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	workflowID, err := s.orchestrator.SubmitWorkflow(c.Request.Context(), req.Workflow, req.Cases)
	if err != nil {
		s.logger.Error("failed to submit workflow", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SUBMISSION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, SubmitResponse{
		WorkflowID:  workflowID,
		Status:      "submitted",
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetWorkflow returns a lifecycle snapshot of a submitted workflow.
func (s *Server) handleGetWorkflow(c *gin.Context) {
	workflowID := c.Param("id")

	status, err := s.orchestrator.Status(workflowID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Workflow not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

// handleListInvocations lists invocations with shared cancellation state.
func (s *Server) handleListInvocations(c *gin.Context) {
	ids, err := s.invocations.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list invocations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to list invocations",
			},
		})
		return
	}
	if ids == nil {
		ids = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"invocations": ids,
		"total":       len(ids),
	})
}

// handleGetInvocation returns the shared record for one invocation.
func (s *Server) handleGetInvocation(c *gin.Context) {
	invocationID := c.Param("id")

	rec, found, err := s.invocations.Load(c.Request.Context(), invocationID)
	if err != nil {
		s.logger.Error("failed to load invocation",
			zap.String("invocation_id", invocationID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to load invocation",
			},
		})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Invocation not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// handleCancelInvocation requests cancellation of an invocation. The
// request is idempotent and always answers 200 with the outcome in the
// body, so retries and races never surface as errors.
func (s *Server) handleCancelInvocation(c *gin.Context) {
	invocationID := c.Param("id")

	result := s.orchestrator.Cancel(c.Request.Context(), invocationID)

	c.JSON(http.StatusOK, result)
}
