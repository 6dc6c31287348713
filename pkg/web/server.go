package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helmcode/cropdoc/pkg/backend"
	"github.com/helmcode/cropdoc/pkg/input"
	"github.com/helmcode/cropdoc/pkg/metrics"
	"github.com/helmcode/cropdoc/pkg/model"
	"github.com/helmcode/cropdoc/pkg/workflow"
)

type Config struct {
	// RequestsPerMinute caps /api calls per client IP. Zero disables it.
	RequestsPerMinute int
	// Compress downscales uploads before they are forwarded.
	Compress bool
	Workflow workflow.Options
}

// Server is the browser-facing API. Each session owns one workflow
// controller, so a new analysis replaces the session's previous one.
type Server struct {
	svc     backend.Service
	catalog *backend.Catalog
	cfg     Config
	limiter *RateLimiter

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	ctrl     *workflow.Controller
	lastSeen time.Time
}

func New(svc backend.Service, cfg Config) *Server {
	s := &Server{
		svc:      svc,
		catalog:  backend.NewCatalog(svc),
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(cfg.RequestsPerMinute)
	}
	return s
}

type analysisResponse struct {
	SessionID string                `json:"session_id"`
	Result    *model.AnalysisResult `json:"result"`
	StatusLog []string              `json:"status_log"`
}

type selectRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	DiseaseName string `json:"disease_name" binding:"required"`
}

type resetRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if s.limiter != nil {
		api.Use(RateLimitMiddleware(s.limiter))
	}
	api.GET("/crops", s.crops)
	api.GET("/advisors", s.advisors)
	api.POST("/analyze", s.analyze)
	api.POST("/select", s.selectCandidate)
	api.POST("/reset", s.reset)
	api.GET("/sessions/:id", s.sessionState)

	return r
}

func (s *Server) health(c *gin.Context) {
	status, err := s.svc.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unreachable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "variant": s.svc.Variant()})
}

func (s *Server) crops(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"crops": s.catalog.Crops(c.Request.Context())})
}

func (s *Server) advisors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"advisors": s.catalog.Advisors(c.Request.Context())})
}

func (s *Server) analyze(c *gin.Context) {
	collector := input.NewCollector()
	collector.Crop = c.PostForm("cropType")
	collector.Advisor = c.PostForm("smeAdvisor")
	collector.Symptoms = c.PostForm("symptoms")
	collector.Compress = s.cfg.Compress
	collector.AllowedCrops = s.catalog.Crops(c.Request.Context())

	if header, err := c.FormFile("image"); err == nil {
		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read the uploaded image.", "field": "image"})
			return
		}
		err = collector.LoadImage(header.Filename, f)
		_ = f.Close()
		if err != nil {
			rejectValidation(c, err)
			return
		}
	}

	req, err := collector.Build()
	if err != nil {
		rejectValidation(c, err)
		return
	}

	id := strings.TrimSpace(c.PostForm("session_id"))
	if id == "" {
		id = uuid.NewString()
	}
	sess := s.session(id, true)

	res := sess.ctrl.RunAnalysis(c.Request.Context(), req)
	if res.Kind == model.KindUncertain {
		go sess.ctrl.LoadThumbnails(context.Background())
	}
	c.JSON(http.StatusOK, analysisResponse{SessionID: id, Result: res, StatusLog: sess.ctrl.State().Status.Entries()})
}

func (s *Server) selectCandidate(c *gin.Context) {
	var body selectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and disease_name are required"})
		return
	}
	sess := s.session(body.SessionID, false)
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}

	res, err := sess.ctrl.SelectCandidate(c.Request.Context(), body.DiseaseName)
	switch {
	case errors.Is(err, workflow.ErrNoContext):
		c.JSON(http.StatusConflict, gin.H{"error": "Analyze an image before selecting a disease."})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysisResponse{SessionID: body.SessionID, Result: res, StatusLog: sess.ctrl.State().Status.Entries()})
}

func (s *Server) reset(c *gin.Context) {
	var body resetRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	if sess := s.session(body.SessionID, false); sess != nil {
		sess.ctrl.Reset()
	}
	c.JSON(http.StatusOK, gin.H{"session_id": body.SessionID, "status": "reset"})
}

func (s *Server) sessionState(c *gin.Context) {
	sess := s.session(c.Param("id"), false)
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.JSON(http.StatusOK, sess.ctrl.State().Snapshot())
}

// session looks up id, creating it when create is set.
func (s *Server) session(id string, create bool) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		if !create {
			return nil
		}
		sess = &session{ctrl: workflow.New(s.svc, workflow.NewState(), s.cfg.Workflow)}
		s.sessions[id] = sess
	}
	sess.lastSeen = time.Now()
	return sess
}

// Prune drops sessions and rate limit buckets idle for longer than maxIdle
// and returns how many sessions were removed.
func (s *Server) Prune(maxIdle time.Duration) int {
	if s.limiter != nil {
		if n := s.limiter.Prune(maxIdle); n > 0 {
			log.WithField("clients", n).Debug("pruned idle rate limiters")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) && !sess.ctrl.State().Loading() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func rejectValidation(c *gin.Context, err error) {
	var v *input.ValidationError
	if errors.As(err, &v) {
		metrics.ValidationRejectedTotal.WithLabelValues(v.Field).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": v.Message, "field": v.Field})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		}).Info("request")
	}
}
