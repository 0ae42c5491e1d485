package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mindmap-dev/mindmap/db"
	"github.com/mindmap-dev/mindmap/internal/auth"
	"github.com/mindmap-dev/mindmap/internal/config"
	"github.com/mindmap-dev/mindmap/internal/handlers"
	"github.com/mindmap-dev/mindmap/internal/logging"
	"github.com/mindmap-dev/mindmap/internal/metrics"
	"github.com/mindmap-dev/mindmap/internal/middleware"
	"github.com/mindmap-dev/mindmap/internal/router"
	"github.com/mindmap-dev/mindmap/internal/scheduler"
	"github.com/mindmap-dev/mindmap/internal/services"
	"github.com/mindmap-dev/mindmap/internal/types"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logging.New("info")

	if err := config.LoadDotEnv(); err != nil {
		log.WithError(err).Fatal("Error loading .env file")
	}

	cfg, err := config.Load()

	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	log = logging.New(cfg.LogLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Bootstrap(ctx, cfg.Database, log)

	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	sqlDB, err := conn.DB()

	if err != nil {
		log.WithError(err).Fatal("Failed to get database handle")
	}

	mailer, err := services.NewSMTPMailer(cfg.Mail)

	if err != nil {
		log.WithError(err).Fatal("Failed to configure mailer")
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	if err != nil {
		log.WithError(err).Fatal("Failed to configure tokens")
	}

	m := metrics.New()
	origins := types.AllowedOrigins(cfg.FrontendURL, cfg.ExtraOrigins)

	authService := services.NewAuthService(conn, mailer, cfg.AppURL, log)
	words := services.NewWordProcessor(nil, cfg.WordServiceURL)

	sched := scheduler.NewScheduler(log, m)
	sched.Start(
		scheduler.DatabaseProbe(sqlDB, cfg.ProbeInterval),
		scheduler.HTTPProbe("word_service", words.Endpoint(), cfg.ProbeInterval),
	)

	limiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, log)
	stopCleanup := limiter.StartCleanup(10 * time.Minute)

	h := &handlers.Handler{
		Auth:            authService,
		Content:         services.NewContentService(conn),
		Words:           words,
		Status:          sched,
		Tokens:          tokens,
		Hub:             handlers.NewHub(origins, log),
		Log:             log,
		Metrics:         m,
		Cookie:          handlers.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure},
		ConfirmRedirect: cfg.ConfirmRedirect,
	}

	r := router.NewRouter(router.Deps{
		Handler:        h,
		Tokens:         tokens,
		Users:          authService,
		AuthLimiter:    limiter,
		Log:            log,
		Metrics:        m,
		AllowedOrigins: origins,
		StaticDir:      cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Infof("Server running at http://localhost:%s", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	sched.Stop()
	stopCleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}

	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Error("Failed to close database pool")
	}

	log.Info("Server stopped")
}
