package apihttp

import (
	"context"
	"errors"
	"net/http"

	"arbiter/internal/gateway/backend"
	"arbiter/internal/logger"
	"arbiter/internal/session"

	"github.com/gin-gonic/gin"
)

// SessionRunner executes one query session.
type SessionRunner interface {
	Run(ctx context.Context, req session.Request) (session.Result, error)
}

// ModelCatalog lists the registered backends.
type ModelCatalog interface {
	Describe() []backend.Descriptor
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Question      string   `json:"question"`
	Models        []string `json:"models"`
	MaxRounds     int      `json:"max_rounds"`
	PromptID      string   `json:"prompt_id"`
	PromptVersion string   `json:"prompt_version"`
}

type Router struct {
	sessions      SessionRunner
	models        ModelCatalog
	defaultModels []string
}

func NewRouter(sessions SessionRunner, models ModelCatalog, defaultModels []string) *Router {
	return &Router{sessions: sessions, models: models, defaultModels: defaultModels}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/query", r.handleQuery)
	group.GET("/models", r.handleModels)
}

func (r *Router) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warnf("[api] query bind failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := r.sessions.Run(c.Request.Context(), session.Request{
		Question:      req.Question,
		ModelIDs:      req.Models,
		MaxRounds:     req.MaxRounds,
		PromptID:      req.PromptID,
		PromptVersion: req.PromptVersion,
	})
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			logger.Errorf("[api] query failed ip=%s err=%v", c.ClientIP(), err)
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] query session=%s models=%d ip=%s", res.SessionID, len(res.Responses), c.ClientIP())
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleModels(c *gin.Context) {
	models := []backend.Descriptor{}
	if r.models != nil {
		models = append(models, r.models.Describe()...)
	}
	defaults := r.defaultModels
	if defaults == nil {
		defaults = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"models": models, "default": defaults})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrUnsupportedFeature):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
