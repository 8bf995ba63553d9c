// Package classroom is the application service: teacher accounts and
// approval, student login, rosters, sessions, class switches, submissions,
// score tables and the live tenant feed.
package classroom

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pavelanni/classquiz/internal/auth"
	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/model"
	"github.com/pavelanni/classquiz/internal/settings"
)

// Store is the document store contract the service depends on.
type Store interface {
	Get(ctx context.Context, path string) (docstore.Document, bool, error)
	Set(ctx context.Context, path string, doc docstore.Document, merge bool) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, collection string) ([]docstore.Entry, error)
	Subscribe(ctx context.Context, collection string) (<-chan docstore.Snapshot, error)
	Ping(ctx context.Context) error
}

// Service holds the store handle and the auth service.
type Service struct {
	store    Store
	auth     *auth.Service
	paths    model.Paths
	validate *validator.Validate
	now      func() time.Time
	loc      *time.Location
}

// New creates a Service. Wall-clock strings such as submission times are
// rendered in loc; a nil loc means the process's local zone.
func New(store Store, authSvc *auth.Service, paths model.Paths, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:    store,
		auth:     authSvc,
		paths:    paths,
		validate: validator.New(),
		now:      time.Now,
		loc:      loc,
	}
}

// Auth returns the authentication service.
func (s *Service) Auth() *auth.Service { return s.auth }

// Location returns the zone wall-clock strings are rendered in.
func (s *Service) Location() *time.Location { return s.loc }

// CheckStore verifies the store is reachable.
func (s *Service) CheckStore(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthNetworkBlocked, err)
	}
	return nil
}

// ListStudents returns a tenant's students sorted by class then roll number.
func (s *Service) ListStudents(ctx context.Context, tenantID string) ([]model.Student, error) {
	students, err := s.loadStudents(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(students, func(a, b model.Student) int {
		return cmp.Or(cmp.Compare(a.ClassGroup, b.ClassGroup), cmp.Compare(a.Hakbun, b.Hakbun))
	})
	return students, nil
}

// ListSessions returns a tenant's sessions in creation order.
func (s *Service) ListSessions(ctx context.Context, tenantID string) ([]model.Session, error) {
	entries, err := s.store.List(ctx, s.paths.Sessions(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return decodeSessions(entries)
}

// Classes returns the distinct class groups of a tenant, sorted.
func (s *Service) Classes(ctx context.Context, tenantID string) ([]string, error) {
	students, err := s.loadStudents(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return classesOf(students), nil
}

func (s *Service) loadStudents(ctx context.Context, tenantID string) ([]model.Student, error) {
	entries, err := s.store.List(ctx, s.paths.Students(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return decodeStudents(entries)
}

func (s *Service) getStudent(ctx context.Context, tenantID, id string) (model.Student, error) {
	doc, ok, err := s.store.Get(ctx, s.paths.Student(tenantID, id))
	if err != nil {
		return model.Student{}, fmt.Errorf("get student: %w", err)
	}
	if !ok {
		return model.Student{}, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	return decodeStudent(id, doc)
}

func (s *Service) getSession(ctx context.Context, tenantID, id string) (model.Session, error) {
	doc, ok, err := s.store.Get(ctx, s.paths.Session(tenantID, id))
	if err != nil {
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}
	if !ok {
		return model.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return decodeSession(id, doc)
}

// LoadSettings reads and decodes a tenant's class switches.
func (s *Service) LoadSettings(ctx context.Context, tenantID string) (settings.Settings, error) {
	doc, _, err := s.store.Get(ctx, s.paths.Settings(tenantID))
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return settings.Decode(doc), nil
}

func decodeStudent(id string, doc docstore.Document) (model.Student, error) {
	var st model.Student
	if err := docstore.Decode(doc, &st); err != nil {
		return model.Student{}, fmt.Errorf("decode student %s: %w", id, err)
	}
	if st.ID == "" {
		st.ID = id
	}
	return st, nil
}

func decodeStudents(entries []docstore.Entry) ([]model.Student, error) {
	out := make([]model.Student, 0, len(entries))
	for _, e := range entries {
		st, err := decodeStudent(e.ID, e.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func decodeSession(id string, doc docstore.Document) (model.Session, error) {
	var sess model.Session
	if err := docstore.Decode(doc, &sess); err != nil {
		return model.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.ID == "" {
		sess.ID = id
	}
	return sess, nil
}

func decodeSessions(entries []docstore.Entry) ([]model.Session, error) {
	out := make([]model.Session, 0, len(entries))
	for _, e := range entries {
		sess, err := decodeSession(e.ID, e.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func classesOf(students []model.Student) []string {
	seen := map[string]bool{}
	var classes []string
	for _, st := range students {
		if st.ClassGroup == "" || seen[st.ClassGroup] {
			continue
		}
		seen[st.ClassGroup] = true
		classes = append(classes, st.ClassGroup)
	}
	slices.Sort(classes)
	return classes
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newStudentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
