package api

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lifehub/internal/db"
	"lifehub/internal/models"
	"lifehub/internal/web/middleware"
	webModels "lifehub/internal/web/models"
)

// RuleHooks is what the API needs from the running engine plumbing after a
// rule mutation: rebuilt ingest associations and reloaded cron entries.
type RuleHooks interface {
	RefreshAssociations() error
	ReloadScheduleRules() error
}

func RegisterRuleRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, dbConn *db.DB, hooks RuleHooks) {
	automations := r.Group("/automations")
	automations.Use(middleware.RequireAuth())
	{
		automations.GET("/rules", func(c *gin.Context) {
			userID := c.GetString("user_id")
			ruleList, err := dbConn.ListRules(c, userID)
			if err != nil {
				log.Printf("API: Failed to fetch rules: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch rules"})
				return
			}
			if ruleList == nil {
				ruleList = []models.Rule{}
			}
			c.JSON(200, ruleList)
		})

		automations.POST("/rules", func(c *gin.Context) {
			userID := c.GetString("user_id")
			var req webModels.AddRuleRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if !models.KnownTriggerTypes[req.TriggerType] {
				c.JSON(400, gin.H{"error": "Unknown trigger type"})
				return
			}

			rule := models.Rule{
				ID:                     uuid.NewString(),
				OwnerID:                userID,
				Name:                   req.Name,
				Description:            req.Description,
				Category:               req.Category,
				Enabled:                true,
				Severity:               req.Severity,
				TriggerType:            req.TriggerType,
				TriggerConfig:          req.TriggerConfig,
				Conditions:             req.Conditions,
				Actions:                req.Actions,
				CooldownMinutes:        30,
				MaxFiresPerDay:         req.MaxFiresPerDay,
				ExcludedRooms:          req.ExcludedRooms,
				ExcludedTimes:          req.ExcludedTimes,
				ExplanationTemplate:    req.ExplanationTemplate,
				EscalationEnabled:      req.EscalationEnabled,
				EscalationAfterMinutes: req.EscalationAfterMinutes,
				EscalationAction:       req.EscalationAction,
				CreatedAt:              time.Now(),
			}
			if req.Enabled != nil {
				rule.Enabled = *req.Enabled
			}
			if rule.Severity == "" {
				rule.Severity = models.SeverityInfo
			}
			if req.CooldownMinutes != nil {
				rule.CooldownMinutes = *req.CooldownMinutes
			}
			if rule.Conditions == nil {
				rule.Conditions = []models.Condition{}
			}
			if rule.Actions == nil {
				rule.Actions = []models.Action{}
			}

			if err := dbConn.InsertRule(c, &rule); err != nil {
				log.Printf("API: Failed to create rule: %v", err)
				c.JSON(500, gin.H{"error": "Failed to create rule"})
				return
			}

			refreshHooks(hooks, rule.ID)
			c.JSON(201, rule)
		})

		automations.GET("/rules/:id", func(c *gin.Context) {
			userID := c.GetString("user_id")
			rule, err := dbConn.GetRule(c, userID, c.Param("id"))
			if err != nil {
				c.JSON(404, gin.H{"error": "Rule not found"})
				return
			}
			c.JSON(200, rule)
		})

		automations.PATCH("/rules/:id", func(c *gin.Context) {
			userID := c.GetString("user_id")
			ruleID := c.Param("id")
			var req webModels.UpdateRuleRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}

			rule, err := dbConn.GetRule(c, userID, ruleID)
			if err != nil {
				c.JSON(404, gin.H{"error": "Rule not found"})
				return
			}

			applyRuleUpdate(rule, &req)
			if !models.KnownTriggerTypes[rule.TriggerType] {
				c.JSON(400, gin.H{"error": "Unknown trigger type"})
				return
			}

			if err := dbConn.UpdateRule(c, rule); err != nil {
				log.Printf("API: Failed to update rule %s: %v", ruleID, err)
				c.JSON(500, gin.H{"error": "Failed to update rule"})
				return
			}

			refreshHooks(hooks, ruleID)
			c.JSON(200, rule)
		})

		automations.DELETE("/rules/:id", func(c *gin.Context) {
			userID := c.GetString("user_id")
			ruleID := c.Param("id")
			if err := dbConn.DeleteRule(c, userID, ruleID); err != nil {
				log.Printf("API: Failed to delete rule %s: %v", ruleID, err)
				c.JSON(500, gin.H{"error": "Failed to delete rule"})
				return
			}
			refreshHooks(hooks, ruleID)
			c.JSON(200, gin.H{"status": "Rule deleted successfully"})
		})

		automations.GET("/rules/:id/executions", func(c *gin.Context) {
			userID := c.GetString("user_id")
			execs, err := dbConn.ExecutionsByRule(c, userID, c.Param("id"), queryLimit(c))
			if err != nil {
				log.Printf("API: Failed to fetch executions: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch executions"})
				return
			}
			if execs == nil {
				execs = []models.RuleExecution{}
			}
			c.JSON(200, execs)
		})

		automations.GET("/executions", func(c *gin.Context) {
			userID := c.GetString("user_id")
			execs, err := dbConn.ExecutionsByUser(c, userID, queryLimit(c))
			if err != nil {
				log.Printf("API: Failed to fetch executions: %v", err)
				c.JSON(500, gin.H{"error": "Failed to fetch executions"})
				return
			}
			if execs == nil {
				execs = []models.RuleExecution{}
			}
			c.JSON(200, execs)
		})
	}
}

// refreshHooks rebuilds ingest associations and cron entries after a rule
// mutation. Failures are logged, never surfaced: the rule write already
// happened.
func refreshHooks(hooks RuleHooks, ruleID string) {
	if hooks == nil {
		return
	}
	if err := hooks.RefreshAssociations(); err != nil {
		log.Printf("API: Error refreshing associations after rule %s change: %v", ruleID, err)
	}
	if err := hooks.ReloadScheduleRules(); err != nil {
		log.Printf("API: Error reloading schedules after rule %s change: %v", ruleID, err)
	}
}

func applyRuleUpdate(rule *models.Rule, req *webModels.UpdateRuleRequest) {
	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.Category != nil {
		rule.Category = *req.Category
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.Severity != nil {
		rule.Severity = *req.Severity
	}
	if req.TriggerType != nil {
		rule.TriggerType = *req.TriggerType
	}
	if req.TriggerConfig != nil {
		rule.TriggerConfig = *req.TriggerConfig
	}
	if req.Conditions != nil {
		rule.Conditions = *req.Conditions
	}
	if req.Actions != nil {
		rule.Actions = *req.Actions
	}
	if req.CooldownMinutes != nil {
		rule.CooldownMinutes = *req.CooldownMinutes
	}
	if req.MaxFiresPerDay != nil {
		rule.MaxFiresPerDay = req.MaxFiresPerDay
	}
	if req.ExcludedRooms != nil {
		rule.ExcludedRooms = *req.ExcludedRooms
	}
	if req.ExcludedTimes != nil {
		rule.ExcludedTimes = *req.ExcludedTimes
	}
	if req.ExplanationTemplate != nil {
		rule.ExplanationTemplate = *req.ExplanationTemplate
	}
	if req.EscalationEnabled != nil {
		rule.EscalationEnabled = *req.EscalationEnabled
	}
	if req.EscalationAfterMinutes != nil {
		rule.EscalationAfterMinutes = *req.EscalationAfterMinutes
	}
	if req.EscalationAction != nil {
		rule.EscalationAction = req.EscalationAction
	}
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}
