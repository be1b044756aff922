package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nimbusdrive/nimbus-go/api/controllers"
	"github.com/nimbusdrive/nimbus-go/api/middlewares"
	"github.com/nimbusdrive/nimbus-go/api/models"
	"github.com/nimbusdrive/nimbus-go/api/notifyhub"
	"github.com/nimbusdrive/nimbus-go/tool"
)

// Server is the built-in dev backend: an in-memory stand-in for the production
// gateway so the client can be exercised end to end without cloud credentials.
type Server struct {
	port   int
	engine *gin.Engine
	server *http.Server
	store  *models.Store
	hub    *notifyhub.Hub
}

// NewServer creates a dev backend on port. hub may be nil when no UI event
// stream is wanted.
func NewServer(port int, maxUploadMB int64, hub *notifyhub.Hub) *Server {
	s := &Server{
		port:  port,
		store: models.NewStore(),
		hub:   hub,
	}
	s.engine = s.setupRoutes(maxUploadMB)
	return s
}

// Store exposes the backing store, used by tests to manipulate token state.
func (s *Server) Store() *models.Store {
	return s.store
}

func (s *Server) setupRoutes(maxUploadMB int64) *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	authCtrl := controllers.NewAuthController(s.store)
	filesCtrl := controllers.NewFilesController(s.store, maxUploadMB)
	recycleCtrl := controllers.NewRecycleController(s.store)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/auth/login", authCtrl.HandleLogin)
		v1.POST("/auth/refresh", authCtrl.HandleRefresh)
		v1.POST("/auth/logout", authCtrl.HandleLogout)

		authed := v1.Group("")
		authed.Use(middlewares.RequireSession(s.store))
		{
			authed.GET("/auth/me", authCtrl.HandleMe)

			authed.POST("/files/upload", filesCtrl.HandleUpload)
			authed.GET("/files", filesCtrl.HandleList)
			authed.GET("/files/:id", filesCtrl.HandleGet)
			authed.DELETE("/files/:id", filesCtrl.HandleSoftDelete)

			authed.GET("/recycle-bin", recycleCtrl.HandleList)
			authed.POST("/recycle-bin/:id/restore", recycleCtrl.HandleRestore)
			authed.DELETE("/recycle-bin/:id", recycleCtrl.HandlePurge)
		}

		if s.hub != nil {
			v1.GET("/events", s.hub.HandleWS)
		}
	}
	return engine
}

// Engine exposes the router for httptest-based callers.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.engine,
	}
	tool.DefaultLogger.Infof("Dev backend listening on :%d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
