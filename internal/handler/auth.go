package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/pavelanni/classquiz/internal/auth"
	"github.com/pavelanni/classquiz/internal/classroom"
	"github.com/pavelanni/classquiz/internal/model"
	"github.com/pavelanni/classquiz/internal/view"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

type sessionCtxKey struct{}

func contextWithSession(ctx context.Context, sess *auth.Session) context.Context {
	ctx = context.WithValue(ctx, sessionCtxKey{}, sess)
	id := sess.Identity()
	return model.ContextWithIdentity(ctx, &id)
}

func sessionFromContext(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(sessionCtxKey{}).(*auth.Session)
	return sess
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// csrfMiddleware implements a double-submit cookie. Safe requests get a
// token cookie; every other request must echo it in the X-CSRF-Token header.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(csrfCookieName)
		hasCookie := err == nil && cookie.Value != ""

		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			token := ""
			if hasCookie {
				token = cookie.Value
			} else {
				token, err = generateCSRFToken()
				if err != nil {
					slog.Error("failed to generate CSRF token", "error", err)
					writeStatus(w, r, http.StatusInternalServerError, "ErrInternal")
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     cookiePath(r),
					HttpOnly: false,
					Secure:   h.config.SecureCookies,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := model.ContextWithCSRFToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if !hasCookie {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			writeStatus(w, r, http.StatusForbidden, "ErrCSRF")
			return
		}
		headerToken := r.Header.Get(csrfHeaderName)
		if headerToken == "" {
			slog.Warn("CSRF header missing", "path", r.URL.Path)
			writeStatus(w, r, http.StatusForbidden, "ErrCSRF")
			return
		}
		if len(headerToken) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			writeStatus(w, r, http.StatusForbidden, "ErrCSRF")
			return
		}
		ctx := model.ContextWithCSRFToken(r.Context(), cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentSession returns the session named by the request cookie, or nil.
func (h *Handler) currentSession(r *http.Request) (*auth.Session, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return h.svc.Auth().Session(r.Context(), cookie.Value)
}

// requireAuth is middleware that checks for a valid session cookie.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.currentSession(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if sess == nil {
			writeStatus(w, r, http.StatusUnauthorized, "ErrUnauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), sess)))
	})
}

// requireRole returns middleware that checks the session's screen state
// grants one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFromContext(r.Context())
			if sess == nil {
				writeStatus(w, r, http.StatusUnauthorized, "ErrUnauthorized")
				return
			}
			role := view.Role(view.Decode(sess.View))
			for _, a := range allowed {
				if role == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeStatus(w, r, http.StatusForbidden, "ErrForbidden")
		})
	}
}

// transition applies a to the session's state and persists the result.
func (h *Handler) transition(ctx context.Context, sess *auth.Session, a view.Action) (view.State, error) {
	next, err := view.Apply(view.Decode(sess.View), a)
	if err != nil {
		return nil, err
	}
	rec := view.Encode(next)
	if rec != sess.View {
		if err := h.svc.Auth().SaveView(ctx, sess.Token, rec); err != nil {
			return nil, err
		}
		sess.View = rec
	}
	return next, nil
}

// startSession replaces any existing login with a new session in state s.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, id model.Identity, s view.State) error {
	if old, err := r.Cookie(sessionCookieName); err == nil && old.Value != "" {
		if err := h.svc.Auth().DeleteSession(r.Context(), old.Value); err != nil {
			slog.Warn("failed to drop previous session", "error", err)
		}
	}
	token, err := h.svc.Auth().CreateSession(r.Context(), id, view.Encode(s))
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     cookiePath(r),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	return nil
}

type stateResponse struct {
	View        view.Record          `json:"view"`
	Role        model.UserRole       `json:"role,omitempty"`
	TeacherCode string               `json:"teacherCode,omitempty"`
	Test        *classroom.TestSheet `json:"test,omitempty"`
	CSRFToken   string               `json:"csrfToken,omitempty"`
}

func (h *Handler) stateBody(ctx context.Context, s view.State) stateResponse {
	resp := stateResponse{
		View:      view.Encode(s),
		Role:      view.Role(s),
		CSRFToken: model.CSRFTokenFromContext(ctx),
	}
	if a, ok := s.(view.Admin); ok {
		resp.TeacherCode = model.TeacherCode(a.TenantID)
	}
	return resp
}

// handleState reports the current screen. A pending teacher is re-resolved
// so an approval takes effect on the next poll, and a test screen whose
// session can no longer be taken falls back to the dashboard.
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.currentSession(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusOK, h.stateBody(ctx, view.Login{}))
		return
	}

	state := view.Decode(sess.View)
	var sheet *classroom.TestSheet
	switch cur := state.(type) {
	case view.TeacherPending:
		t, err := h.svc.TeacherFor(ctx, sess.Identity())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if state, err = h.transition(ctx, sess, view.TeacherSignedIn{Teacher: t}); err != nil {
			h.writeError(w, r, err)
			return
		}
	case view.Test:
		ts, err := h.svc.StartTest(ctx, cur.TenantID, cur.StudentID, cur.SessionID)
		switch {
		case err == nil:
			sheet = &ts
		case classroom.KindOf(err).Fatal() || classroom.KindOf(err) == classroom.KindInternal:
			h.writeError(w, r, err)
			return
		default:
			slog.Info("test no longer available", "session", cur.SessionID, "reason", err)
			if state, err = h.transition(ctx, sess, view.LeaveTest{}); err != nil {
				h.writeError(w, r, err)
				return
			}
		}
	}

	resp := h.stateBody(ctx, state)
	resp.Test = sheet
	writeJSON(w, http.StatusOK, resp)
}

type teacherCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

func (h *Handler) handleTeacherSignUp(w http.ResponseWriter, r *http.Request) {
	var in teacherCredentials
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, t, err := h.svc.SignUpTeacher(r.Context(), in.Email, in.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.signedIn(w, r, id, t, http.StatusCreated)
}

func (h *Handler) handleTeacherLogin(w http.ResponseWriter, r *http.Request) {
	var in teacherCredentials
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, t, err := h.svc.SignInTeacher(r.Context(), in.Email, in.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.signedIn(w, r, id, t, http.StatusOK)
}

func (h *Handler) signedIn(w http.ResponseWriter, r *http.Request, id model.Identity, t model.Teacher, status int) {
	state, err := view.Apply(view.Login{}, view.TeacherSignedIn{Teacher: t})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.startSession(w, r, id, state); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("teacher signed in", "uid", id.UID, "status", t.Status)
	writeJSON(w, status, h.stateBody(r.Context(), state))
}

type studentCredentials struct {
	TeacherCode string `json:"teacherCode" validate:"max=64"`
	StudentCode string `json:"studentCode" validate:"max=64"`
}

func (h *Handler) handleStudentLogin(w http.ResponseWriter, r *http.Request) {
	var in studentCredentials
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	tenantID, st, err := h.svc.LoginStudent(ctx, in.TeacherCode, in.StudentCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.svc.Auth().Authenticate(ctx, auth.Anonymous{})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	state, err := view.Apply(view.Login{}, view.StudentLoggedIn{TenantID: tenantID, StudentID: st.ID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.startSession(w, r, id, state); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("student logged in", "tenant", tenantID, "student", st.ID)
	writeJSON(w, http.StatusOK, h.stateBody(ctx, state))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.svc.Auth().DeleteSession(r.Context(), cookie.Value); err != nil {
			slog.Warn("failed to delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     cookiePath(r),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	state, _ := view.Apply(view.Login{}, view.Logout{})
	writeJSON(w, http.StatusOK, h.stateBody(r.Context(), state))
}
