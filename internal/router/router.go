package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-identity-api/internal/handler"
	"github.com/noah-isme/lms-identity-api/internal/middleware"
	"github.com/noah-isme/lms-identity-api/internal/models"
	"github.com/noah-isme/lms-identity-api/internal/service"
	"github.com/noah-isme/lms-identity-api/internal/tenant"
	"github.com/noah-isme/lms-identity-api/pkg/config"
	"github.com/noah-isme/lms-identity-api/pkg/logger"
	"github.com/noah-isme/lms-identity-api/pkg/middleware/cors"
	"github.com/noah-isme/lms-identity-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-identity-api/pkg/response"

	_ "github.com/noah-isme/lms-identity-api/api/swagger"
)

// Deps bundles everything the gateway needs to assemble its route table.
type Deps struct {
	Config       *config.Config
	Logger       *zap.Logger
	Router       *tenant.Router
	Redis        *redis.Client
	Metrics      *service.MetricsService
	Auth         *handler.AuthHandler
	Users        *handler.UserHandler
	Tenants      *handler.TenantHandler
	Authenticate gin.HandlerFunc
}

// New builds the HTTP gateway. Route groups express the access model:
// /auth mixes public and authenticated routes, /users requires any
// authenticated role, /admin requires ADMIN, /superadmin requires
// SUPERADMIN and no tenant header.
func New(d Deps) *gin.Engine {
	if d.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestid.Middleware())
	engine.Use(logger.GinMiddleware(d.Logger))
	engine.Use(cors.New(d.Config.CORS.AllowedOrigins))
	engine.Use(middleware.Metrics(d.Metrics))

	engine.GET("/health", func(c *gin.Context) {
		response.JSON(c, 200, gin.H{"status": "ok"}, nil)
	})
	engine.GET("/ready", func(c *gin.Context) {
		response.JSON(c, 200, gin.H{"status": "ready"}, nil)
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{})))
	if d.Config.Env != config.EnvProduction {
		engine.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := engine.Group(d.Config.APIPrefix)

	resolveTenant := middleware.TenantResolver(d.Router)
	limit := middleware.RateLimit(d.Config.RateLimit, d.Redis, d.Logger)

	auth := api.Group("/auth", resolveTenant)
	{
		auth.POST("/login", limit, d.Auth.Login)
		auth.POST("/register", limit, d.Auth.Register)
		auth.POST("/refresh", d.Auth.Refresh)
		auth.POST("/forgot-password", limit, d.Auth.ForgotPassword)
		auth.POST("/reset-password", d.Auth.ResetPassword)
		auth.POST("/verify-email", d.Auth.VerifyEmail)

		authed := auth.Group("", d.Authenticate)
		{
			authed.GET("/me", d.Auth.Me)
			authed.POST("/logout", d.Auth.Logout)
			authed.POST("/revoke-sessions", d.Auth.RevokeSessions)
			authed.POST("/change-password", d.Auth.ChangePassword)
		}
	}

	users := api.Group("/users", resolveTenant, d.Authenticate)
	{
		users.GET("/me", d.Users.Me)
		users.PUT("/me", d.Users.UpdateMe)
	}

	admin := api.Group("/admin", resolveTenant, d.Authenticate, middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/users", d.Users.List)
		admin.GET("/users/:id", d.Users.Get)
		admin.PUT("/users/:id/role", d.Users.UpdateRole)
		admin.DELETE("/users/:id", d.Users.Deactivate)
	}

	superadmin := api.Group("/superadmin", d.Authenticate, middleware.RequireRole(models.RoleSuperAdmin))
	{
		superadmin.GET("/tenants", d.Tenants.List)
		superadmin.POST("/tenants", d.Tenants.Create)
		superadmin.GET("/tenants/:ref", d.Tenants.Get)
		superadmin.PATCH("/tenants/:ref/status", d.Tenants.UpdateStatus)
	}

	return engine
}
