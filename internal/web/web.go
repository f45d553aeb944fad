package web

import (
	"lifehub/auth"
	"lifehub/internal/db"
	"lifehub/internal/web/api"
	"lifehub/internal/web/middleware"

	"github.com/gin-gonic/gin"
)

type WebServer struct {
	router *gin.Engine
}

func NewWebServer(dbConn *db.DB, JWTSecret string, hooks api.RuleHooks) *WebServer {
	router := gin.Default()

	authModule := auth.NewAuthModule(dbConn.Pool(), JWTSecret)
	middlewareManager := middleware.NewMiddlewareManager(authModule)

	api.RegisterAuthRoutes(router, authModule, middlewareManager)
	api.RegisterRuleRoutes(router, middlewareManager, dbConn, hooks)
	api.RegisterEventRoutes(router, middlewareManager, dbConn)
	api.RegisterUserRoutes(router, middlewareManager, dbConn.Pool())

	return &WebServer{router: router}
}

func (ws *WebServer) Start(addr string) {
	ws.router.Run(addr)
}
