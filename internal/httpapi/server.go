// Package httpapi exposes prediction, chat and symptom listing over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/classifier"
	"github.com/souchan25/virtualHealthAssistant/internal/diagnosis"
	"github.com/souchan25/virtualHealthAssistant/internal/dialogue"
	"github.com/souchan25/virtualHealthAssistant/internal/logger"
	"github.com/souchan25/virtualHealthAssistant/internal/router"
	"github.com/souchan25/virtualHealthAssistant/internal/symptoms"
)

const (
	maxBodyBytes  = 1 << 20
	statusTimeout = 2 * time.Second
)

// Predictor runs the prediction path.
type Predictor interface {
	Predict(ctx context.Context, req diagnosis.Request) (*diagnosis.Report, error)
}

// ChatRouter routes chat turns.
type ChatRouter interface {
	Handle(ctx context.Context, turn router.Turn) (*router.Decision, error)
}

// DialogueEngine is the dialogue engine's health and history surface.
type DialogueEngine interface {
	Status(ctx context.Context) error
	History(ctx context.Context, sender string) ([]dialogue.Event, error)
}

// Deps are the collaborators behind the API. Any of them may be nil; the
// endpoints they back then answer 503.
type Deps struct {
	Predictor  Predictor
	Chat       ChatRouter
	Dialogue   DialogueEngine
	Registry   *chain.Registry
	Vocabulary *symptoms.Vocabulary
	Metadata   *classifier.Metadata

	// DialogueEnabled is false when the dialogue engine is switched off in
	// configuration; health then reports it as disabled.
	DialogueEnabled bool
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
}

// New creates a Server.
func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), limitBodySize(maxBodyBytes), requestLogger())
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes wires the API endpoints onto r.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/health", s.health)
	api.GET("/symptoms", s.listSymptoms)
	api.POST("/predict", s.predict)
	api.POST("/chat", s.chat)
	api.GET("/chat/:session/history", s.chatHistory)
	api.POST("/dialogue/predict", s.dialoguePredict)
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, diagnosis.ErrNoSymptoms), errors.Is(err, router.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, symptoms.ErrModelNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

var errUnavailable = errors.New("service not configured")
