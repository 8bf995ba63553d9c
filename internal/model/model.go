package model

import "context"

// UserRole represents the role the active user plays in the app.
type UserRole string

const (
	// UserRoleStudent is a student logged in with a teacher code and personal code.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin is an approved teacher managing their own tenant.
	UserRoleAdmin UserRole = "admin"
	// UserRoleTeacher is a credentialed teacher whose account is not yet approved.
	UserRoleTeacher UserRole = "teacher"
)

// TeacherStatus is the approval status of a teacher account.
type TeacherStatus string

const (
	TeacherPending  TeacherStatus = "pending"
	TeacherApproved TeacherStatus = "approved"
)

// Identity is the opaque user identity issued by the auth service.
type Identity struct {
	UID       string `json:"uid"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

// Teacher is a platform-wide teacher record keyed by the teacher's UID.
type Teacher struct {
	UID       string        `json:"-"`
	Email     string        `json:"email"`
	Status    TeacherStatus `json:"status"`
	CreatedAt int64         `json:"createdAt"`
}

// Approved reports whether the teacher may reach the admin dashboard.
func (t Teacher) Approved() bool {
	return t.Status == TeacherApproved
}

// TeacherIndex maps a public teacher code to a tenant.
type TeacherIndex struct {
	TenantID  string `json:"tenantId"`
	Email     string `json:"email"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Submission is a student's graded answer set for one session.
type Submission struct {
	Score       int      `json:"score"`
	SubmittedAt string   `json:"submittedAt"`
	Answers     []string `json:"answers,omitempty"`
}

// Student is a learner record inside a tenant.
type Student struct {
	ID         string                `json:"id"`
	ClassGroup string                `json:"classGroup"`
	Hakbun     string                `json:"hakbun"`
	Name       string                `json:"name"`
	Code       string                `json:"code"`
	Scores     map[string]Submission `json:"scores"`
}

// Submission returns the student's submission for a session, if any.
func (s Student) Submission(sessionID string) (Submission, bool) {
	sub, ok := s.Scores[sessionID]
	return sub, ok
}

// TotalScore sums every stored submission score.
func (s Student) TotalScore() int {
	total := 0
	for _, sub := range s.Scores {
		total += sub.Score
	}
	return total
}

// Session is one gradable test unit with a fixed answer key.
type Session struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Answers []string `json:"answers"`
	PDFURL  string   `json:"pdfUrl,omitempty"`
}

// ItemsPerSession is the fixed number of answers per session.
const ItemsPerSession = 5

// SessionState is how a session appears on a student's dashboard.
type SessionState string

const (
	SessionCompleted SessionState = "completed"
	SessionOpen      SessionState = "open"
	SessionClosed    SessionState = "closed"
)

// DashboardEntry is one session row on the student dashboard.
type DashboardEntry struct {
	Session    Session      `json:"session"`
	State      SessionState `json:"state"`
	Submission *Submission  `json:"submission,omitempty"`
}

// StudentDashboard is the student home screen.
type StudentDashboard struct {
	Student    Student          `json:"student"`
	TotalScore int              `json:"totalScore"`
	Entries    []DashboardEntry `json:"entries"`
}

// ScoreTable is the admin per-class score view.
type ScoreTable struct {
	Classes  []string   `json:"classes"`
	Class    string     `json:"class"`
	Sessions []Session  `json:"sessions"`
	Rows     []ScoreRow `json:"rows"`
}

// ScoreRow is one student in a ScoreTable.
type ScoreRow struct {
	Student Student `json:"student"`
	Total   int     `json:"total"`
	// Scores holds one entry per session; nil means not submitted.
	Scores []*int `json:"scores"`
}

// ImportResult summarizes a bulk roster import.
type ImportResult struct {
	Added            []Student `json:"added"`
	SkippedShort     int       `json:"skippedShort"`
	SkippedDuplicate int       `json:"skippedDuplicate"`
	NewClasses       []string  `json:"newClasses,omitempty"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	Lang          string // default response language
	BasePath      string // URL prefix for sub-path deployments
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
}

type identityCtxKey struct{}

// ContextWithIdentity stores the authenticated identity in the request context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext retrieves the authenticated identity from context, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityCtxKey{}).(*Identity)
	return id
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
