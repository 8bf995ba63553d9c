package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/pavelanni/classquiz/internal/classroom"
	appI18n "github.com/pavelanni/classquiz/internal/i18n"
	"github.com/pavelanni/classquiz/internal/model"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc      *classroom.Service
	config   model.AppConfig
	validate *validator.Validate
	upgrader websocket.Upgrader
	now      func() time.Time

	// fatal is set when startup failed; every route then answers 503.
	fatal error
}

// New creates a new Handler.
func New(svc *classroom.Service, cfg model.AppConfig) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("classroom service is required")
	}
	return &Handler{
		svc:      svc,
		config:   cfg,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		now: time.Now,
	}, nil
}

// NewFatal creates a Handler that serves only the error screen for a
// startup failure such as missing configuration or an unreachable store.
func NewFatal(err error, cfg model.AppConfig) *Handler {
	return &Handler{config: cfg, fatal: err, now: time.Now}
}

// Routes registers all HTTP routes. Responses are localized in the
// configured language unless the request asks for another one.
func (h *Handler) Routes(r chi.Router) {
	r.Use(appI18n.Middleware(h.config.Lang))
	if h.fatal != nil {
		r.HandleFunc("/*", h.handleFatal)
		return
	}

	r.Use(h.csrfMiddleware)

	r.Get("/api/state", h.handleState)
	r.Post("/api/teacher/signup", h.handleTeacherSignUp)
	r.Post("/api/teacher/login", h.handleTeacherLogin)
	r.Post("/api/student/login", h.handleStudentLogin)
	r.Post("/api/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(requireRole(model.UserRoleAdmin))
		r.Get("/api/admin/students", h.handleListStudents)
		r.Post("/api/admin/students", h.handleImportStudents)
		r.Delete("/api/admin/students/{studentID}", h.handleDeleteStudent)
		r.Get("/api/admin/sessions", h.handleListSessions)
		r.Post("/api/admin/sessions", h.handleCreateSession)
		r.Delete("/api/admin/sessions/{sessionID}", h.handleDeleteSession)
		r.Get("/api/admin/settings", h.handleSwitchBoard)
		r.Post("/api/admin/settings/toggle", h.handleToggleClass)
		r.Post("/api/admin/settings/all", h.handleSetAllClasses)
		r.Get("/api/admin/scores", h.handleScores)
		r.Get("/api/admin/scores.csv", h.handleScoresCSV)
		r.Get("/api/admin/review/{studentID}/{sessionID}", h.handleAdminReview)
		r.Post("/api/admin/reset/{studentID}/{sessionID}", h.handleResetSubmission)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(requireRole(model.UserRoleStudent))
		r.Get("/api/student/dashboard", h.handleDashboard)
		r.Post("/api/student/tests/leave", h.handleLeaveTest)
		r.Post("/api/student/tests/{sessionID}/start", h.handleStartTest)
		r.Post("/api/student/tests/{sessionID}/submit", h.handleSubmit)
		r.Get("/api/student/review/{sessionID}", h.handleStudentReview)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(requireRole(model.UserRoleAdmin, model.UserRoleStudent))
		r.Get("/api/live", h.handleLive)
	})
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cookiePath scopes cookies to the deployment's base path.
func cookiePath(r *http.Request) string {
	if bp := model.BasePathFromContext(r.Context()); bp != "" {
		return bp + "/"
	}
	return "/"
}

func (h *Handler) handleFatal(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, h.fatal)
}
