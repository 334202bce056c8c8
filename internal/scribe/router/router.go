// Package router provides scribe service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/scribe-x/internal/scribe/handler"
)

// Register registers the scribe service routes.
func Register(engine *gin.Engine, gen *handler.GenerateHandler, sess *handler.SessionHandler, hist *handler.HistoryHandler, ops *handler.OpsHandler) {
	logger.Info("Registering scribe routes...")

	engine.GET("/healthz", ops.Healthz)

	v1 := engine.Group("/v1")
	{
		// Content generation
		v1.POST("/generate", gen.Generate)

		// Document Q&A sessions
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sess.Create)
			sessions.POST("/:id/documents", sess.Upload)
			sessions.POST("/:id/ask", sess.Ask)
			sessions.POST("/:id/reset", sess.Reset)
			sessions.GET("/:id/transcript", sess.Transcript)
			sessions.DELETE("/:id", sess.End)
		}

		// Research history
		history := v1.Group("/history")
		{
			history.GET("", hist.List)
			history.GET("/:id", hist.Detail)
		}

		// Runtime stats
		v1.GET("/stats", ops.Stats)
	}

	logger.Info("HTTP routes registered")
}
