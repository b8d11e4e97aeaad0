package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/config"
	"github.com/lucidchat/billing/internal/http/api/front/handlers"
	"github.com/lucidchat/billing/internal/ledger"
	"github.com/lucidchat/billing/internal/models"
	"github.com/lucidchat/billing/internal/ratelimit"
	"github.com/lucidchat/billing/internal/security"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers public and authenticated front-end routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc *ledger.Service, counter *ratelimit.Counter) {
	if r == nil || db == nil {
		return
	}

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	front.POST("/register", authHandler.Register)
	front.POST("/login", authHandler.Login)

	authed := front.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg))

	balanceHandler := handlers.NewBalanceHandler(svc)
	authed.GET("/balance", balanceHandler.Summary)

	usageHandler := handlers.NewUsageHandler(svc)
	authed.GET("/usage/daily", usageHandler.Daily)
	authed.GET("/usage/sessions", usageHandler.Sessions)

	planHandler := handlers.NewPlanFrontHandler(db, svc)
	authed.GET("/plans", planHandler.List)
	authed.POST("/checkout", planHandler.Checkout)

	chatHandler := handlers.NewChatHandler(db, svc, counter)
	authed.POST("/chat/check", chatHandler.Check)
	authed.POST("/chat/usage", chatHandler.ReportUsage)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("userRole", user.Role)
		c.Next()
	}
}
