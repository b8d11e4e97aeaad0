package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/config"
	"github.com/lucidchat/billing/internal/http/api/admin/handlers"
	"github.com/lucidchat/billing/internal/ledger"
	"github.com/lucidchat/billing/internal/security"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers management routes under /v0/admin.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc *ledger.Service) {
	if r == nil || db == nil {
		return
	}

	admin := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	admin.POST("/login", authHandler.Login)

	authed := admin.Group("")
	authed.Use(adminAuthMiddleware(jwtCfg))

	planHandler := handlers.NewPlanHandler(db)
	authed.GET("/plans", planHandler.List)
	authed.POST("/plans", planHandler.Create)
	authed.PUT("/plans/:id", planHandler.Update)
	authed.DELETE("/plans/:id", planHandler.Delete)

	modelConfigHandler := handlers.NewModelConfigHandler(db)
	authed.GET("/model-configs", modelConfigHandler.List)
	authed.POST("/model-configs", modelConfigHandler.Create)
	authed.PUT("/model-configs/:id", modelConfigHandler.Update)

	settingHandler := handlers.NewSettingHandler(db)
	authed.GET("/settings", settingHandler.List)
	authed.PUT("/settings", settingHandler.Update)

	grantHandler := handlers.NewGrantHandler(svc)
	authed.POST("/grants", grantHandler.Create)
}

// adminAuthMiddleware validates administrator JWTs.
func adminAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("adminID", claims.AdminID)
		c.Next()
	}
}
