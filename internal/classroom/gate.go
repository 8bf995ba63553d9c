package classroom

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/model"
)

// ResolveTenant maps a typed teacher code to a tenant id.
func (s *Service) ResolveTenant(ctx context.Context, teacherCode string) (string, error) {
	code := normalizeCode(teacherCode)
	if code == "" {
		return "", ErrLookupNotFound
	}
	doc, ok, err := s.store.Get(ctx, s.paths.TeacherIndex(code))
	if err != nil {
		return "", fmt.Errorf("resolve teacher code: %w", err)
	}
	if !ok {
		return "", ErrLookupNotFound
	}
	var idx model.TeacherIndex
	if err := docstore.Decode(doc, &idx); err != nil || idx.TenantID == "" {
		return "", ErrLookupNotFound
	}
	return idx.TenantID, nil
}

// ResolveStudent finds the student with the given personal code. If the
// code is shared, the lowest roll number (then id) wins.
func (s *Service) ResolveStudent(ctx context.Context, tenantID, studentCode string) (model.Student, error) {
	code := normalizeCode(studentCode)
	if code == "" {
		return model.Student{}, ErrLookupNotFound
	}
	students, err := s.loadStudents(ctx, tenantID)
	if err != nil {
		return model.Student{}, err
	}
	var matches []model.Student
	for _, st := range students {
		if normalizeCode(st.Code) == code {
			matches = append(matches, st)
		}
	}
	if len(matches) == 0 {
		return model.Student{}, ErrLookupNotFound
	}
	if len(matches) > 1 {
		slices.SortStableFunc(matches, func(a, b model.Student) int {
			return cmp.Or(cmp.Compare(a.Hakbun, b.Hakbun), cmp.Compare(a.ID, b.ID))
		})
		slog.Warn("student code shared by several students", "tenant", tenantID, "count", len(matches))
	}
	return matches[0], nil
}

// LoginStudent resolves both codes. Either failure is ErrLookupNotFound.
func (s *Service) LoginStudent(ctx context.Context, teacherCode, studentCode string) (string, model.Student, error) {
	if normalizeCode(teacherCode) == "" || normalizeCode(studentCode) == "" {
		return "", model.Student{}, ErrLookupNotFound
	}
	tenantID, err := s.ResolveTenant(ctx, teacherCode)
	if err != nil {
		return "", model.Student{}, err
	}
	st, err := s.ResolveStudent(ctx, tenantID, studentCode)
	if err != nil {
		return "", model.Student{}, err
	}
	slog.Info("student logged in", "tenant", tenantID, "student", st.ID)
	return tenantID, st, nil
}
