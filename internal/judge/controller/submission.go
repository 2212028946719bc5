// Package controller exposes the judge core over HTTP.
package controller

import (
	"github.com/gin-gonic/gin"

	"arbiter/internal/judge/service"
	"arbiter/pkg/utils/response"
)

// SubmissionController handles the submission endpoints.
type SubmissionController struct {
	svc *service.IntakeService
}

// NewSubmissionController creates a controller.
func NewSubmissionController(svc *service.IntakeService) *SubmissionController {
	return &SubmissionController{svc: svc}
}

// RegisterRoutes mounts the endpoints under the given router group.
func (ctl *SubmissionController) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/submissions", ctl.Submit)
	rg.GET("/submissions/:id/result", ctl.GetResult)
}

type submitRequest struct {
	ProblemID  string `json:"problem_id" binding:"required"`
	Language   string `json:"language" binding:"required"`
	SourceCode string `json:"source_code" binding:"required"`
}

type submitResponse struct {
	SubmissionID string `json:"submission_id"`
}

// Submit admits a new submission.
func (ctl *SubmissionController) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	id, err := ctl.svc.Submit(c.Request.Context(), req.ProblemID, req.Language, []byte(req.SourceCode))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, submitResponse{SubmissionID: id})
}

// GetResult returns the current lifecycle view of a submission.
func (ctl *SubmissionController) GetResult(c *gin.Context) {
	view, err := ctl.svc.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}
