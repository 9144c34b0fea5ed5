package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/reelforge/internal/ports/primary"
)

func (s *Server) registerPublishRoutes(router *gin.RouterGroup) {
	router.POST("/tasks/:id/publish", s.fanOut)
	router.GET("/tasks/:id/publish", s.getPublishStatus)
	router.POST("/publish/:id/retry", s.retryPublish)
	router.POST("/publish/:id/cancel", s.cancelPublish)
	router.DELETE("/publish/:id", s.deletePublish)
	router.GET("/publish/:id/log", s.entityLog("publish"))
}

type fanOutBody struct {
	AccountIDs []string `json:"account_ids"`
}

func (s *Server) fanOut(c *gin.Context) {
	var body fanOutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", primary.ErrInvalidRequest, err))
		return
	}

	taskID := c.Param("id")
	records, err := s.publish.FanOut(c.Request.Context(), primary.FanOutRequest{
		TaskID:     taskID,
		AccountIDs: body.AccountIDs,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "published_accounts": records})
}

func (s *Server) getPublishStatus(c *gin.Context) {
	status, err := s.publish.GetPublishStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) retryPublish(c *gin.Context) {
	resp, err := s.publish.RetryPublish(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) cancelPublish(c *gin.Context) {
	resp, err := s.publish.CancelPublish(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) deletePublish(c *gin.Context) {
	resp, err := s.publish.DeletePublish(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
