package api

import (
	"log"

	"github.com/gin-gonic/gin"

	"lifehub/internal/db"
	"lifehub/internal/models"
	"lifehub/internal/taskqueue"
	"lifehub/internal/web/middleware"
	webModels "lifehub/internal/web/models"
)

// RegisterEventRoutes wires the trigger intake and ambient context surface.
// The dashboard and its collaborators (camera tagger, task hooks, voice
// layer) push events here; evaluation itself happens on the task queue.
func RegisterEventRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, dbConn *db.DB) {
	events := r.Group("/events")
	events.Use(middleware.RequireAuth())
	{
		events.POST("", func(c *gin.Context) {
			userID := c.GetString("user_id")
			var req webModels.EventRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if !models.KnownTriggerTypes[req.TriggerType] {
				c.JSON(400, gin.H{"error": "Unknown trigger type"})
				return
			}

			if err := taskqueue.EnqueueTrigger(userID, req.TriggerType, req.TriggerData); err != nil {
				log.Printf("API: Failed to enqueue %s event for user %s: %v", req.TriggerType, userID, err)
				c.JSON(500, gin.H{"error": "Failed to enqueue event"})
				return
			}
			c.JSON(202, gin.H{"status": "queued"})
		})
	}

	contexts := r.Group("/context")
	contexts.Use(middleware.RequireAuth())
	{
		contexts.GET("", func(c *gin.Context) {
			userID := c.GetString("user_id")
			uc, err := dbConn.GetUserContext(c, userID)
			if err != nil {
				log.Printf("API: Failed to fetch context for user %s: %v", userID, err)
				c.JSON(500, gin.H{"error": "Failed to fetch context"})
				return
			}
			c.JSON(200, uc)
		})

		contexts.PATCH("", func(c *gin.Context) {
			userID := c.GetString("user_id")
			var req webModels.ContextPatchRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}

			if req.Room != nil || req.Activity != nil {
				if err := dbConn.PatchUserContext(c, userID, req.Room, req.Activity); err != nil {
					log.Printf("API: Failed to patch context for user %s: %v", userID, err)
					c.JSON(500, gin.H{"error": "Failed to update context"})
					return
				}
			}
			if req.IdleMinutes != nil || req.ActiveTaskID != nil {
				current, err := dbConn.GetUserContext(c, userID)
				if err != nil {
					log.Printf("API: Failed to read context for user %s: %v", userID, err)
					c.JSON(500, gin.H{"error": "Failed to update context"})
					return
				}
				idle := current.IdleMinutes
				taskID := current.ActiveTaskID
				if req.IdleMinutes != nil {
					idle = *req.IdleMinutes
				}
				if req.ActiveTaskID != nil {
					taskID = *req.ActiveTaskID
				}
				if err := dbConn.UpdateIdleState(c, userID, idle, taskID); err != nil {
					log.Printf("API: Failed to update idle state for user %s: %v", userID, err)
					c.JSON(500, gin.H{"error": "Failed to update context"})
					return
				}
			}

			uc, err := dbConn.GetUserContext(c, userID)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch context"})
				return
			}
			c.JSON(200, uc)
		})
	}
}
