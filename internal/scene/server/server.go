// Package server exposes the studio session over HTTP and a websocket.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"directorscut/internal/scene/studio"
)

type Server struct {
	ctl      *studio.Controller
	Router   *gin.Engine
	upgrader websocket.Upgrader
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// clientMessage is what websocket clients send: {"type":"submit","prompt":"..."}
// or {"type":"narrate"}.
type clientMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt,omitempty"`
}

type serverMessage struct {
	Type     string      `json:"type"`
	Snapshot interface{} `json:"snapshot,omitempty"`
	Error    string      `json:"error,omitempty"`
}

func New(ctl *studio.Controller) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		ctl:    ctl,
		Router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.Router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.Router.Group("/api")
	{
		api.GET("/session", s.getSession)
		api.POST("/prompt", s.submitPrompt)
		api.POST("/narration", s.toggleNarration)
		api.POST("/render", s.renderVideo)
		api.DELETE("/notice", s.takeNotice)
		api.GET("/ws", s.stream)
	}
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("Studio server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logrus.Info("Studio server stopped")
	return nil
}

func (s *Server) getSession(c *gin.Context) {
	writeJSON(c, http.StatusOK, s.ctl.Snapshot())
}

func (s *Server) submitPrompt(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	var req promptRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeJSON(c, http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	if !s.ctl.SubmitPrompt(req.Prompt) {
		writeJSON(c, http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	writeJSON(c, http.StatusAccepted, s.ctl.Snapshot())
}

func (s *Server) toggleNarration(c *gin.Context) {
	s.ctl.ToggleNarration()
	writeJSON(c, http.StatusAccepted, s.ctl.Snapshot())
}

func (s *Server) renderVideo(c *gin.Context) {
	if err := s.ctl.RenderVideo(); err != nil {
		writeJSON(c, http.StatusLocked, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) takeNotice(c *gin.Context) {
	notice := s.ctl.TakeNotice()
	if notice == nil {
		c.Status(http.StatusNoContent)
		return
	}
	writeJSON(c, http.StatusOK, notice)
}

// stream pushes a snapshot on every change and applies client actions.
func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.ctl.Subscribe()
	defer unsubscribe()

	var writeMu sync.Mutex
	send := func(msg serverMessage) error {
		data, err := sonic.Marshal(msg)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg clientMessage
			if err := sonic.Unmarshal(data, &msg); err != nil {
				_ = send(serverMessage{Type: "error", Error: "invalid JSON"})
				continue
			}
			switch msg.Type {
			case "submit":
				if !s.ctl.SubmitPrompt(msg.Prompt) {
					_ = send(serverMessage{Type: "error", Error: "prompt is required"})
				}
			case "narrate":
				s.ctl.ToggleNarration()
			case "render":
				if err := s.ctl.RenderVideo(); err != nil {
					_ = send(serverMessage{Type: "error", Error: err.Error()})
				}
			default:
				_ = send(serverMessage{Type: "error", Error: "unknown message type " + msg.Type})
			}
		}
	}()

	if err := send(serverMessage{Type: "snapshot", Snapshot: s.ctl.Snapshot()}); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "studio closed"),
					time.Now().Add(time.Second))
				return
			}
			if err := send(serverMessage{Type: "snapshot", Snapshot: snap}); err != nil {
				logrus.WithError(err).Debug("Websocket client went away")
				return
			}
		}
	}
}

func writeJSON(c *gin.Context, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	}
}
