package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/example/reelforge/internal/ports/primary"
)

func (s *Server) registerTaskRoutes(router *gin.RouterGroup) {
	router.POST("/tasks", s.createTask)
	router.GET("/tasks", s.listTasks)
	router.GET("/tasks/:id/status", s.getTaskStatus)
	router.GET("/tasks/:id/result", s.getTaskResult)
	router.POST("/tasks/:id/cancel", s.cancelTask)
	router.POST("/tasks/:id/resume", s.resumeTask)
	router.DELETE("/tasks/:id", s.deleteTask)
	router.GET("/tasks/:id/log", s.entityLog("task"))
}

type createTaskBody struct {
	PipelineType string         `json:"pipeline_type"`
	Params       map[string]any `json:"params"`
}

func (s *Server) createTask(c *gin.Context) {
	var body createTaskBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", primary.ErrInvalidRequest, err))
		return
	}

	resp, err := s.tasks.CreateTask(c.Request.Context(), primary.CreateTaskRequest{
		PipelineType: body.PipelineType,
		Params:       body.Params,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) listTasks(c *gin.Context) {
	filters := primary.TaskFilters{
		Status:       c.Query("status"),
		PipelineType: c.Query("pipeline_type"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			abortWithError(c, fmt.Errorf("%w: limit must be a non-negative integer", primary.ErrInvalidRequest))
			return
		}
		filters.Limit = limit
	}

	list, err := s.tasks.ListTasks(c.Request.Context(), filters)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getTaskStatus(c *gin.Context) {
	status, err := s.tasks.GetTaskStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// getTaskResult flattens stage outputs into the top level of the response.
func (s *Server) getTaskResult(c *gin.Context) {
	result, err := s.tasks.GetTaskResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	body := gin.H{}
	for stage, payload := range result.Outputs {
		body[stage] = payload
	}
	body["task_id"] = result.TaskID
	body["status"] = result.Status
	body["stages"] = result.Stages
	body["stage_log"] = result.StageLog
	if result.CreatorID != "" {
		body["creator_id"] = result.CreatorID
	}
	if result.ContentID != "" {
		body["content_id"] = result.ContentID
	}
	if result.Error != "" {
		body["error"] = result.Error
		body["failed_stage"] = result.FailedStage
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) cancelTask(c *gin.Context) {
	id := c.Param("id")
	if err := s.tasks.CancelTask(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("task %s cancellation requested", id), "task_id": id})
}

func (s *Server) resumeTask(c *gin.Context) {
	id := c.Param("id")
	if err := s.tasks.ResumeTask(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": fmt.Sprintf("task %s resumed", id), "task_id": id})
}

func (s *Server) deleteTask(c *gin.Context) {
	id := c.Param("id")
	if err := s.tasks.DeleteTask(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("task %s deleted", id), "task_id": id})
}

func (s *Server) entityLog(entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.logs == nil {
			abortWithError(c, fmt.Errorf("%w: audit log is not available", errRouteNotFound))
			return
		}
		entries, err := s.logs.ListEntityLog(c.Request.Context(), entityType, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entity_type": entityType, "entity_id": c.Param("id"), "entries": entries})
	}
}
