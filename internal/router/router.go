package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mindmap-dev/mindmap/internal/handlers"
	"github.com/mindmap-dev/mindmap/internal/metrics"
	"github.com/mindmap-dev/mindmap/internal/middleware"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	Handler        *handlers.Handler
	Tokens         middleware.TokenVerifier
	Users          middleware.UserFinder
	AuthLimiter    *middleware.RateLimiter
	Log            *logrus.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	StaticDir      string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Metrics(d.Metrics))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h := d.Handler
	requireAuth := middleware.AuthMiddleware(d.Tokens, d.Users)
	limit := d.AuthLimiter.Handler()

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	r.POST("/signup", limit, h.Signup)
	r.GET("/confirm", h.Confirm)
	r.GET("/is-confirmed", h.IsConfirmed)
	r.POST("/login", limit, h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/me", requireAuth, h.Me)

	r.POST("/process-words", h.ProcessWords)

	authed := r.Group("/", requireAuth)
	{
		authed.POST("/submit-report", h.SubmitReport)
		authed.POST("/save-constellation", h.SaveConstellation)
		authed.PUT("/update-constellation/:id", h.UpdateConstellation)
		authed.GET("/get-constellations/:userId", h.ListConstellations)
		authed.GET("/constellation/:id", h.GetConstellation)
		authed.GET("/ws", h.WebSocket)
	}

	r.NoRoute(handlers.StaticFiles(d.StaticDir))

	return r
}
