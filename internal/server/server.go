// Package server exposes the reconciliation workflow over HTTP for the web
// frontend: upload documents, watch extraction progress, attach GSTR2B data,
// run reconciliation and download reports.
package server

import (
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gstrecon/internal/config"
	"gstrecon/internal/extract"
	"gstrecon/internal/gstr2b"
	"gstrecon/internal/session"
	"gstrecon/internal/storage"
)

type Server struct {
	cfg      config.Config
	log      *logrus.Logger
	sessions *session.Service
	runner   *extract.Runner
	db       *storage.DB
	gst      *gstr2b.Client

	// jobSessions maps a finished extraction job to the session created
	// from its records.
	mu          sync.RWMutex
	jobSessions map[string]string
}

func New(cfg config.Config, log *logrus.Logger, sessions *session.Service, db *storage.DB) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		cfg:         cfg,
		log:         log,
		sessions:    sessions,
		runner:      extract.NewRunner(log),
		db:          db,
		gst:         gstr2b.NewClient(cfg),
		jobSessions: make(map[string]string),
	}
}

// Router builds the gin engine with CORS and all API routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api.POST("/documents/upload", s.uploadDocuments)
	api.GET("/documents/:documentId", s.getDocument)
	api.GET("/jobs/:jobId", s.jobProgress)
	api.DELETE("/jobs/:jobId", s.forgetJob)

	sessions := api.Group("/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("", s.listSessions)
	sessions.GET("/:id", s.getSession)
	sessions.DELETE("/:id", s.deleteSession)
	sessions.PUT("/:id/invoices", s.editInvoices)
	sessions.POST("/:id/accept", s.acceptExtracted)
	sessions.POST("/:id/gstr2b/upload", s.uploadGSTR2B)
	sessions.POST("/:id/gstr2b/fetch", s.fetchGSTR2B)
	sessions.POST("/:id/reconcile", s.reconcile)
	sessions.GET("/:id/report", s.getReport)
	sessions.GET("/:id/report/xlsx", s.downloadReport)

	return r
}

// Run starts the HTTP listener on the configured address.
func (s *Server) Run() error {
	s.log.WithField("addr", s.cfg.HTTPAddr).Info("http server listening")
	return s.Router().Run(s.cfg.HTTPAddr)
}

func (s *Server) rememberJobSession(jobID, sessionID string) {
	s.mu.Lock()
	s.jobSessions[jobID] = sessionID
	s.mu.Unlock()
}

func (s *Server) jobSession(jobID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.jobSessions[jobID]
	return id, ok
}

func (s *Server) dropJobSession(jobID string) {
	s.mu.Lock()
	delete(s.jobSessions, jobID)
	s.mu.Unlock()
}
