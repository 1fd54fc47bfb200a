package handlers

import (
	"github.com/gin-gonic/gin"
)

func (h *Handler) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// Link collaborator API
	api := r.Group("/api/v1")
	{
		api.POST("/links", h.CreateLink)
		api.PATCH("/links/:short_code", h.UpdateLink)
	}

	// Catch-all Redirects
	r.GET("/:short_code", h.Redirect)

	return r
}
