package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mindmap-dev/mindmap/internal/metrics"
	"github.com/mindmap-dev/mindmap/internal/middleware"
	"github.com/mindmap-dev/mindmap/internal/models"
	"github.com/mindmap-dev/mindmap/internal/services"
	"github.com/mindmap-dev/mindmap/internal/types"
	"github.com/sirupsen/logrus"
)

type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*models.User, error)
	Confirm(ctx context.Context, email string) error
	IsConfirmed(ctx context.Context, email string) (bool, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
}

type ContentService interface {
	SubmitReport(ctx context.Context, userID uint, content string) (*models.Report, error)
	SaveConstellation(ctx context.Context, userID uint, name string, data json.RawMessage) (*models.Constellation, error)
	UpdateConstellation(ctx context.Context, userID, id uint, name string, data json.RawMessage) error
	ListConstellations(ctx context.Context, userID uint) ([]models.Constellation, error)
	GetConstellation(ctx context.Context, userID, id uint) (*models.Constellation, error)
}

type WordService interface {
	Process(ctx context.Context, payload []byte) (*services.ProxyResponse, error)
}

type StatusSource interface {
	Results() []types.ProbeResult
	GetStatus() map[string]interface{}
}

type TokenIssuer interface {
	Generate(userID uint, email string) (string, error)
	TTL() time.Duration
}

type CookieConfig struct {
	Domain string
	Secure bool
}

// Handler carries the services the HTTP routes call into.
type Handler struct {
	Auth            AuthService
	Content         ContentService
	Words           WordService
	Status          StatusSource
	Tokens          TokenIssuer
	Hub             *Hub
	Log             *logrus.Logger
	Metrics         *metrics.Metrics
	Cookie          CookieConfig
	ConfirmRedirect string
}

func (h *Handler) logger(ctx *gin.Context) *logrus.Entry {
	return middleware.RequestLog(ctx, h.Log)
}

func (h *Handler) setTokenCookie(ctx *gin.Context, token string, maxAge int) {
	sameSite := http.SameSiteNoneMode
	if !h.Cookie.Secure {
		sameSite = http.SameSiteLaxMode
	}

	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Domain:   h.Cookie.Domain,
		MaxAge:   maxAge,
		Secure:   h.Cookie.Secure,
		HttpOnly: true,
		SameSite: sameSite,
	})
}
