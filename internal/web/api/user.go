package api

import (
	"fmt"
	"log"
	"strconv"

	"lifehub/internal/web/middleware"
	"lifehub/internal/web/models"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// parseUserID converts the string user id the JWT middleware carries back
// to the integer primary key of the users table.
func parseUserID(userID string) (int, error) {
	id, err := strconv.Atoi(userID)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", userID)
	}
	return id, nil
}

func RegisterUserRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, dbConn *pgxpool.Pool) {
	users := r.Group("/users")
	users.Use(middleware.RequireAuth())
	{
		users.GET("/me", func(c *gin.Context) {
			id, err := parseUserID(c.GetString("user_id"))
			if err != nil {
				c.JSON(404, gin.H{"error": "User not found"})
				return
			}
			var user models.User
			var dbID int
			err = dbConn.QueryRow(c, "SELECT id, email, username FROM users WHERE id=$1", id).Scan(&dbID, &user.Email, &user.Name)
			if err != nil {
				log.Printf("API: Failed to fetch user data: %v", err)
				c.JSON(404, gin.H{"error": "User not found"})
				return
			}
			user.ID = strconv.Itoa(dbID)
			c.JSON(200, user)
		})
	}
}
