package classroom

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/pavelanni/classquiz/internal/auth"
	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/model"
)

// SignUpTeacher creates an account and its pending teacher record.
func (s *Service) SignUpTeacher(ctx context.Context, email, password string) (model.Identity, model.Teacher, error) {
	id, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return model.Identity{}, model.Teacher{}, err
	}
	t := model.Teacher{
		UID:       id.UID,
		Email:     id.Email,
		Status:    model.TeacherPending,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.putTeacher(ctx, t); err != nil {
		return model.Identity{}, model.Teacher{}, err
	}
	slog.Info("teacher signed up", "uid", t.UID, "email", t.Email)
	return id, t, nil
}

// SignInTeacher checks email and password and resolves the teacher record.
func (s *Service) SignInTeacher(ctx context.Context, email, password string) (model.Identity, model.Teacher, error) {
	id, err := s.auth.Authenticate(ctx, auth.EmailPassword{Email: email, Password: password})
	if err != nil {
		return model.Identity{}, model.Teacher{}, err
	}
	t, err := s.TeacherFor(ctx, id)
	if err != nil {
		return model.Identity{}, model.Teacher{}, err
	}
	return id, t, nil
}

// TeacherFor returns the teacher record of a credentialed identity. A
// missing record is created as pending. An approved teacher's alias is
// republished, so a sign-in heals a stale index row.
func (s *Service) TeacherFor(ctx context.Context, id model.Identity) (model.Teacher, error) {
	if id.Anonymous || id.UID == "" {
		return model.Teacher{}, fmt.Errorf("%w: anonymous identity is not a teacher", ErrInvalidInput)
	}
	t, ok, err := s.getTeacher(ctx, id.UID)
	if err != nil {
		return model.Teacher{}, err
	}
	if !ok {
		t = model.Teacher{
			UID:       id.UID,
			Email:     id.Email,
			Status:    model.TeacherPending,
			CreatedAt: s.now().UnixMilli(),
		}
		if err := s.putTeacher(ctx, t); err != nil {
			return model.Teacher{}, err
		}
		slog.Info("pending teacher record created", "uid", t.UID, "email", t.Email)
		return t, nil
	}
	if t.Email == "" {
		t.Email = id.Email
	}
	if t.Approved() {
		if err := s.publishAlias(ctx, t); err != nil {
			return model.Teacher{}, err
		}
	}
	return t, nil
}

// Approve marks a teacher approved and publishes the alias. who is a uid or
// an account email.
func (s *Service) Approve(ctx context.Context, who string) (model.Teacher, error) {
	uid, err := s.resolveTeacherUID(ctx, who)
	if err != nil {
		return model.Teacher{}, err
	}
	t, ok, err := s.getTeacher(ctx, uid)
	if err != nil {
		return model.Teacher{}, err
	}
	if !ok {
		return model.Teacher{}, fmt.Errorf("teacher %s: %w", who, ErrNotFound)
	}
	t.Status = model.TeacherApproved
	err = s.store.Set(ctx, s.paths.Teacher(uid), docstore.Document{"status": string(model.TeacherApproved)}, true)
	if err != nil {
		return model.Teacher{}, fmt.Errorf("approve teacher: %w", err)
	}
	if err := s.publishAlias(ctx, t); err != nil {
		return model.Teacher{}, err
	}
	slog.Info("teacher approved", "uid", uid, "email", t.Email, "code", model.TeacherCode(uid))
	return t, nil
}

// ListTeachers returns every teacher record ordered by creation time.
func (s *Service) ListTeachers(ctx context.Context) ([]model.Teacher, error) {
	entries, err := s.store.List(ctx, s.paths.Teachers())
	if err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	teachers := make([]model.Teacher, 0, len(entries))
	for _, e := range entries {
		t, err := decodeTeacher(e.ID, e.Data)
		if err != nil {
			return nil, err
		}
		teachers = append(teachers, t)
	}
	slices.SortStableFunc(teachers, func(a, b model.Teacher) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
	return teachers, nil
}

// TenantOf resolves a teacher code, uid or account email to a tenant ID.
func (s *Service) TenantOf(ctx context.Context, who string) (string, error) {
	tenantID, err := s.ResolveTenant(ctx, who)
	if err == nil {
		return tenantID, nil
	}
	if !errors.Is(err, ErrLookupNotFound) {
		return "", err
	}
	uid, err := s.resolveTeacherUID(ctx, who)
	if err != nil {
		return "", err
	}
	if _, ok, err := s.getTeacher(ctx, uid); err != nil {
		return "", err
	} else if !ok {
		return "", fmt.Errorf("teacher %s: %w", who, ErrNotFound)
	}
	return uid, nil
}

func (s *Service) resolveTeacherUID(ctx context.Context, who string) (string, error) {
	who = strings.TrimSpace(who)
	if who == "" {
		return "", fmt.Errorf("%w: teacher uid or email required", ErrInvalidInput)
	}
	if !strings.Contains(who, "@") {
		return who, nil
	}
	doc, ok, err := s.store.Get(ctx, s.paths.Account(who))
	if err != nil {
		return "", fmt.Errorf("look up account: %w", err)
	}
	var acct struct {
		UID string `json:"uid"`
	}
	if ok {
		if err := docstore.Decode(doc, &acct); err != nil {
			return "", err
		}
	}
	if acct.UID == "" {
		return "", fmt.Errorf("account %s: %w", who, ErrNotFound)
	}
	return acct.UID, nil
}

func (s *Service) publishAlias(ctx context.Context, t model.Teacher) error {
	code := model.TeacherCode(t.UID)
	idx := model.TeacherIndex{TenantID: t.UID, Email: t.Email, UpdatedAt: s.now().UnixMilli()}
	doc, err := docstore.Encode(idx)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.paths.TeacherIndex(code), doc, true); err != nil {
		return fmt.Errorf("publish teacher code: %w", err)
	}
	slog.Debug("teacher code published", "code", code, "tenant", t.UID)
	return nil
}

func (s *Service) getTeacher(ctx context.Context, uid string) (model.Teacher, bool, error) {
	doc, ok, err := s.store.Get(ctx, s.paths.Teacher(uid))
	if err != nil {
		return model.Teacher{}, false, fmt.Errorf("get teacher: %w", err)
	}
	if !ok {
		return model.Teacher{}, false, nil
	}
	t, err := decodeTeacher(uid, doc)
	return t, err == nil, err
}

func (s *Service) putTeacher(ctx context.Context, t model.Teacher) error {
	doc, err := docstore.Encode(t)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, s.paths.Teacher(t.UID), doc, false); err != nil {
		return fmt.Errorf("save teacher: %w", err)
	}
	return nil
}

func decodeTeacher(uid string, doc docstore.Document) (model.Teacher, error) {
	var t model.Teacher
	if err := docstore.Decode(doc, &t); err != nil {
		return model.Teacher{}, fmt.Errorf("decode teacher %s: %w", uid, err)
	}
	t.UID = uid
	if t.Status == "" {
		t.Status = model.TeacherPending
	}
	return t, nil
}
