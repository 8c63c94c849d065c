// Package api exposes the HTTP surface: transcription uploads, the record
// CRUD endpoints, the provider credential check, health and metrics.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"audioscribe/internal/apperr"
	"audioscribe/internal/observe"
	"audioscribe/internal/repository"
	"audioscribe/internal/stt"
	"audioscribe/internal/transcribe"
	"audioscribe/internal/utils"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Service   *transcribe.Service
	Providers *stt.Registry
	Store     repository.Store
	Metrics   *observe.Metrics
	Logger    zerolog.Logger

	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler
	CORSOrigins    []string
	// MaxUploadSize bounds the request body of /transcribe. The multipart
	// envelope gets some slack on top.
	MaxUploadSize int64
	ServiceName   string
}

// Handler holds the injected dependencies of every route.
type Handler struct {
	svc       *transcribe.Service
	providers *stt.Registry
	store     repository.Store
	logger    zerolog.Logger
	maxBody   int64
	service   string
}

const multipartSlack = 1 << 20

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(d Deps) *gin.Engine {
	registerTagNames()

	r := gin.New()
	r.Use(requestID(), recovery(d.Logger), requestLogger(d.Logger), cors(d.CORSOrigins))
	if d.Metrics != nil {
		r.Use(observe.Middleware(d.Metrics))
	}

	h := &Handler{
		svc:       d.Service,
		providers: d.Providers,
		store:     d.Store,
		logger:    d.Logger.With().Str("component", "api").Logger(),
		service:   d.ServiceName,
	}
	if d.MaxUploadSize > 0 {
		h.maxBody = d.MaxUploadSize + multipartSlack
	}
	h.RegisterRoutes(r)
	r.NoRoute(func(c *gin.Context) {
		utils.Error(c, apperr.NotFound("route", ""))
	})

	if d.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}
	return r
}

// RegisterRoutes mounts the service routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)

	r.POST("/transcribe", h.Transcribe)
	r.GET("/speech/test", h.SpeechTest)

	t := r.Group("/transcriptions")
	t.GET("", h.ListTranscriptions)
	t.POST("", h.CreateTranscription)
	t.GET("/:id", h.GetTranscription)
	t.PUT("/:id", h.UpdateTranscription)
	t.DELETE("/:id", h.DeleteTranscription)
}

// Health reports liveness plus the active store driver and default provider.
func (h *Handler) Health(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":   "ok",
		"service":  h.service,
		"store":    h.store.Driver(),
		"provider": h.providers.Default(),
	})
}
