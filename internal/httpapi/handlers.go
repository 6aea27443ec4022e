package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/diagnosis"
	"github.com/souchan25/virtualHealthAssistant/internal/dialogue"
	"github.com/souchan25/virtualHealthAssistant/internal/logger"
	"github.com/souchan25/virtualHealthAssistant/internal/router"
)

type predictReq struct {
	Symptoms       []string `json:"symptoms" binding:"required"`
	WantValidation *bool    `json:"want_validation"`

	// Validate is the older name for WantValidation and loses to it.
	Validate *bool `json:"validate"`
}

// wantValidation is true unless the caller opts out.
func (r predictReq) wantValidation() bool {
	switch {
	case r.WantValidation != nil:
		return *r.WantValidation
	case r.Validate != nil:
		return *r.Validate
	}
	return true
}

// dialoguePredictReq is the callback body sent by dialogue actions.
type dialoguePredictReq struct {
	Symptoms         []string `json:"symptoms" binding:"required"`
	SenderID         string   `json:"sender_id"`
	GenerateInsights bool     `json:"generate_insights"`
}

type symptomItem struct {
	Name     string `json:"name"`
	Severity *int   `json:"severity,omitempty"`
}

func (s *Server) predict(c *gin.Context) {
	var req predictReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: symptoms list is required"})
		return
	}
	s.runPrediction(c, diagnosis.Request{Symptoms: req.Symptoms, WantValidation: req.wantValidation()})
}

func (s *Server) dialoguePredict(c *gin.Context) {
	var req dialoguePredictReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: symptoms list is required"})
		return
	}
	logger.Debug("dialogue prediction callback", "sender", req.SenderID, "symptoms", len(req.Symptoms))
	s.runPrediction(c, diagnosis.Request{Symptoms: req.Symptoms, WantValidation: req.GenerateInsights})
}

func (s *Server) runPrediction(c *gin.Context, req diagnosis.Request) {
	if s.deps.Predictor == nil {
		abortError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	report, err := s.deps.Predictor.Predict(c.Request.Context(), req)
	if err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, report.Response())
}

func (s *Server) chat(c *gin.Context) {
	if s.deps.Chat == nil {
		abortError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	var turn router.Turn
	if err := c.ShouldBindJSON(&turn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if turn.SessionID == "" {
		turn.SessionID = uuid.NewString()
	}
	if turn.Language == "" {
		turn.Language = "english"
	}

	d, err := s.deps.Chat.Handle(c.Request.Context(), turn)
	if err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, d.Response(turn.SessionID))
}

func (s *Server) chatHistory(c *gin.Context) {
	if s.deps.Dialogue == nil || !s.deps.DialogueEnabled {
		abortError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	session := c.Param("session")
	events, err := s.deps.Dialogue.History(c.Request.Context(), session)
	if err != nil {
		abortError(c, http.StatusBadGateway, err)
		return
	}
	if events == nil {
		events = []dialogue.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"session_id": session, "events": events})
}

func (s *Server) listSymptoms(c *gin.Context) {
	vocab := s.deps.Vocabulary
	if vocab.Len() == 0 {
		abortError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	names := vocab.Names()
	items := make([]symptomItem, 0, len(names))
	for _, name := range names {
		item := symptomItem{Name: name}
		if w, ok := s.deps.Metadata.Severity(name); ok {
			item.Severity = &w
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"symptoms": items, "count": len(items)})
}

func (s *Server) health(c *gin.Context) {
	providers := gin.H{}
	if reg := s.deps.Registry; reg != nil {
		for _, role := range []chain.Role{chain.RoleChat, chain.RoleValidate} {
			names := []string{}
			for _, d := range reg.Providers(role) {
				names = append(names, d.Name)
			}
			providers[string(role)] = names
		}
	}

	dialogueStatus := "disabled"
	if s.deps.DialogueEnabled && s.deps.Dialogue != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), statusTimeout)
		defer cancel()
		dialogueStatus = "ok"
		if err := s.deps.Dialogue.Status(ctx); err != nil {
			dialogueStatus = "unavailable"
		}
	}

	modelLoaded := s.deps.Predictor != nil && s.deps.Vocabulary.Len() > 0
	status := "ok"
	if !modelLoaded {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"model_loaded": modelLoaded,
		"providers":    providers,
		"dialogue":     dialogueStatus,
	})
}
