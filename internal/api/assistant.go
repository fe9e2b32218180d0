// Package api exposes the cooking assistant over HTTP. It is the calling
// layer around the engine: it resolves sessions to recipe documents,
// invokes engine operations synchronously, and streams session events to
// subscribers over websockets.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"souschef/internal/database"
	"souschef/internal/engine"
	"souschef/internal/extract"
	"souschef/internal/models"
	"souschef/internal/monitoring"
	"souschef/internal/session"
)

// AssistantAPI represents the main API handler for the assistant
type AssistantAPI struct {
	Router   *gin.Engine
	Sessions *session.Registry

	store     *database.Store
	monitor   *monitoring.Monitor
	extractor *extract.Extractor
	jwtSecret []byte
}

// Config carries the API's collaborators. Extractor and Monitor are
// optional; JWTSecret left empty disables authentication.
type Config struct {
	Store     *database.Store
	Monitor   *monitoring.Monitor
	Extractor *extract.Extractor
	JWTSecret string
}

// NewAssistantAPI creates a new assistant API instance
func NewAssistantAPI(cfg Config) *AssistantAPI {
	api := &AssistantAPI{
		Router:    gin.Default(),
		Sessions:  session.NewRegistry(),
		store:     cfg.Store,
		monitor:   cfg.Monitor,
		extractor: cfg.Extractor,
		jwtSecret: []byte(cfg.JWTSecret),
	}

	api.setupRoutes()
	return api
}

// setupRoutes configures all API endpoints
func (a *AssistantAPI) setupRoutes() {
	// Health check
	a.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "souschef API is running"})
	})

	// Event stream for the voice/UI layer
	a.Router.GET("/ws/:id", a.StreamSessionEvents)

	v1 := a.Router.Group("/api/v1")
	v1.Use(a.authMiddleware())
	{
		// Recipe management
		v1.POST("/recipes", a.CreateRecipe)
		v1.GET("/recipes", a.ListRecipes)
		v1.GET("/recipes/:id", a.GetRecipe)
		v1.POST("/recipes/extract", a.ExtractRecipe)

		// Session lifecycle
		v1.POST("/sessions", a.CreateSession)
		v1.GET("/sessions", a.ListSessions)
		v1.GET("/sessions/:id", a.GetSession)
		v1.DELETE("/sessions/:id", a.DeleteSession)

		// Engine operations
		v1.POST("/sessions/:id/start", a.StartRecipe)
		v1.POST("/sessions/:id/abort", a.AbortRecipe)
		v1.POST("/sessions/:id/steps/:step_id/start", a.StartStep)
		v1.POST("/sessions/:id/steps/:step_id/confirm", a.ConfirmStep)
		v1.POST("/sessions/:id/steps/:step_id/skip", a.SkipStep)

		// Contextual queries
		v1.GET("/sessions/:id/steps/:step_id", a.GetStep)
		v1.GET("/sessions/:id/steps/:step_id/remaining", a.GetStepRemaining)
	}
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrStepNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidTransition), errors.Is(err, engine.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Recipe management handlers

func (a *AssistantAPI) CreateRecipe(c *gin.Context) {
	var req struct {
		RecipeID string                 `json:"recipe_id" binding:"required"`
		Document models.RecipeDocument `json:"document" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := extract.ValidateDocument(&req.Document); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.store.SaveDocument(req.RecipeID, &req.Document); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recipe_id": req.RecipeID})
}

func (a *AssistantAPI) ListRecipes(c *gin.Context) {
	recipes, err := a.store.ListRecipes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, recipes)
}

func (a *AssistantAPI) GetRecipe(c *gin.Context) {
	doc, err := a.store.GetDocument(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (a *AssistantAPI) ExtractRecipe(c *gin.Context) {
	if a.extractor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recipe extraction is not configured"})
		return
	}
	var req struct {
		RecipeID string `json:"recipe_id" binding:"required"`
		Text     string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := a.extractor.Extract(c.Request.Context(), req.Text)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := a.store.SaveDocument(req.RecipeID, doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// Session lifecycle handlers

func (a *AssistantAPI) CreateSession(c *gin.Context) {
	var req struct {
		RecipeID  string `json:"recipe_id" binding:"required"`
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := a.store.GetDocument(req.RecipeID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	eng, created, err := a.Sessions.GetOrCreate(sessionID, doc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if created && a.monitor != nil {
		a.monitor.SessionCreated(sessionID, eng)
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": sessionID,
		"recipe":     eng.Title(),
		"status":     eng.Status(),
		"steps":      eng.Snapshot(),
	})
}

func (a *AssistantAPI) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": a.Sessions.Sessions()})
}

func (a *AssistantAPI) GetSession(c *gin.Context) {
	eng, ok := a.Sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": c.Param("id"),
		"recipe":     eng.Title(),
		"status":     eng.Status(),
		"steps":      eng.Snapshot(),
	})
}

func (a *AssistantAPI) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	if _, ok := a.Sessions.Get(sessionID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	a.Sessions.Cleanup(sessionID)
	if a.monitor != nil {
		a.monitor.SessionClosed(sessionID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

// Engine operation handlers

func (a *AssistantAPI) StartRecipe(c *gin.Context) {
	a.withEngine(c, func(eng *engine.Engine) error {
		return eng.Start()
	})
}

func (a *AssistantAPI) AbortRecipe(c *gin.Context) {
	a.withEngine(c, func(eng *engine.Engine) error {
		return eng.Abort()
	})
}

func (a *AssistantAPI) StartStep(c *gin.Context) {
	a.withEngine(c, func(eng *engine.Engine) error {
		return eng.StartStep(c.Param("step_id"))
	})
}

func (a *AssistantAPI) ConfirmStep(c *gin.Context) {
	a.withEngine(c, func(eng *engine.Engine) error {
		return eng.ConfirmStepDone(c.Param("step_id"))
	})
}

func (a *AssistantAPI) SkipStep(c *gin.Context) {
	a.withEngine(c, func(eng *engine.Engine) error {
		return eng.SkipStep(c.Param("step_id"))
	})
}

// withEngine looks up the session's engine, runs the operation, and
// answers with the refreshed instance status.
func (a *AssistantAPI) withEngine(c *gin.Context, op func(*engine.Engine) error) {
	eng, ok := a.Sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err := op(eng); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": eng.Status(),
		"steps":  eng.Snapshot(),
	})
}

// Contextual query handlers

func (a *AssistantAPI) GetStep(c *gin.Context) {
	eng, ok := a.Sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	snap, err := eng.StepSnapshot(c.Param("step_id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetStepRemaining answers "how long until this step is done" with a
// phrasing the voice layer can speak directly.
func (a *AssistantAPI) GetStepRemaining(c *gin.Context) {
	eng, ok := a.Sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	rem, err := eng.TimeRemaining(c.Param("step_id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"remaining_seconds": int(rem.Seconds()),
		"remaining":         models.FormatISO8601Duration(rem),
		"spoken":            models.HumanizeDuration(rem),
	})
}
