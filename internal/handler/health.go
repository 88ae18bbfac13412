package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

// Health godoc
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} model.HealthResponse
// @Router /api/health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Root is the landing response for "/".
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "My Notes API server is running",
	})
}
