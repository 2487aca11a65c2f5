package web

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/static"
)

// requestTimeout bounds every API request except session event streams.
// Training on a large sample set is the slowest request.
const requestTimeout = 5 * time.Minute

func (s *Server) setupRoutes() {
	statsHandler := handlers.NewStatsHandler(s.svc)
	authHandler := handlers.NewAuthHandler(s.config, s.sessionManager)
	configHandler := handlers.NewConfigHandler(s.config)
	studentsHandler := handlers.NewStudentsHandler(s.svc)
	registerHandler := handlers.NewRegisterHandler(s.svc, statsHandler)
	trainHandler := handlers.NewTrainHandler(s.svc)
	attendanceHandler := handlers.NewAttendanceHandler(s.svc, statsHandler)
	recognizeHandler := handlers.NewRecognizeHandler(s.svc, statsHandler)
	sessionsHandler := handlers.NewSessionsHandler(s.svc, s.jobManager, statsHandler, s.config.Session.Camera, s.opener)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager, s.config.Web.Password))

			// Session event streams stay open for the whole session
			r.Get("/sessions/{jobId}/events", sessionsHandler.Events)

			r.Group(func(r chi.Router) {
				r.Use(chiMiddleware.Timeout(requestTimeout))

				// Students
				r.Get("/students", studentsHandler.List)
				r.Get("/students/{username}", studentsHandler.Get)
				r.Post("/register", registerHandler.Register)

				// Training
				r.Post("/train", trainHandler.Train)

				// Attendance ledger
				r.Get("/attendance", attendanceHandler.List)
				r.Get("/attendance/export", attendanceHandler.Export)
				r.Post("/attendance/mark", attendanceHandler.Mark)
				r.Post("/clear", attendanceHandler.Clear)

				// Single-frame recognition
				r.Post("/recognize", recognizeHandler.Recognize)

				// Live sessions (long-running)
				r.Post("/sessions", sessionsHandler.Start)
				r.Get("/sessions", sessionsHandler.List)
				r.Get("/sessions/{jobId}", sessionsHandler.Status)
				r.Delete("/sessions/{jobId}", sessionsHandler.Cancel)

				r.Get("/config", configHandler.Get)
				r.Get("/stats", statsHandler.Get)
			})
		})
	})

	s.router.Get("/*", s.serveSPA)
}

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".ico":  "image/x-icon",
}

func contentTypeFor(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		if ct, ok := contentTypes[path[i:]]; ok {
			return ct
		}
	}
	return "application/octet-stream"
}

// serveSPA serves the embedded dashboard, falling back to index.html for unknown paths
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	if static.HasDist() {
		fsys := static.GetFileSystem()
		path := r.URL.Path
		if path == "/" {
			path = "/index.html"
		}

		if f, err := fsys.Open(path); err == nil {
			defer f.Close()
			if stat, err := f.Stat(); err == nil && !stat.IsDir() {
				w.Header().Set("Content-Type", contentTypeFor(path))
				w.WriteHeader(http.StatusOK)
				io.Copy(w, f)
				return
			}
		}

		if !strings.HasPrefix(path, "/assets/") {
			if index, err := fsys.Open("/index.html"); err == nil {
				defer index.Close()
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				io.Copy(w, index)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Face Attendance</title></head>
<body>
    <h1>Face Attendance</h1>
    <p>Dashboard assets are missing. The API is available at <a href="/api/v1/health">/api/v1/health</a>.</p>
</body>
</html>`))
}
