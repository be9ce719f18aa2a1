package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fineprint-agent/internal/connectivity"
	"fineprint-agent/internal/documents"
	"fineprint-agent/internal/engine"
	"fineprint-agent/internal/operations"
	"fineprint-agent/internal/shared/config"
	"fineprint-agent/internal/shared/metrics"
	"fineprint-agent/internal/shared/server/middleware"
	"fineprint-agent/internal/shared/server/respond"
	"fineprint-agent/internal/status"
)

// Deps carries the constructed collaborators into the router.
type Deps struct {
	Config    config.Config
	Engine    *engine.Engine
	Monitor   *connectivity.Monitor
	Documents *documents.Service
	Ops       *operations.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.LocalAuthToken, deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"UPLOAD":  {Rate: 2, Burst: 5},
				"CONTROL": {Rate: 5, Burst: 10},
			},
			GroupFor: func(c *gin.Context) string {
				switch {
				case c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/documents":
					return "UPLOAD"
				case c.Request.Method == http.MethodPost && (c.FullPath() == "/api/v1/sync" || c.FullPath() == "/api/v1/cleanup"):
					return "CONTROL"
				}
				return ""
			},
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())

	documents.NewHandler(deps.Documents).RegisterRoutes(api)
	deps.Ops.RegisterRoutes(api)
	status.NewHandler(deps.Engine, deps.Monitor).RegisterRoutes(api)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8090"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
