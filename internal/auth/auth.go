// Package auth issues user identities: anonymous, email+password accounts,
// and opaque session tokens that carry the signed-in screen state.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/model"
	"github.com/pavelanni/classquiz/internal/view"
)

// DefaultSessionTTL is the lifetime of a session token.
const DefaultSessionTTL = 24 * time.Hour

var (
	// ErrAuthFailed is returned for unknown accounts, wrong passwords and
	// expired or unknown tokens alike.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrEmailTaken is returned by SignUp for an existing account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned by SignUp for a malformed email or short password.
	ErrInvalidCredentials = errors.New("invalid email or password format")
)

// Store is the subset of the document store the service needs.
type Store interface {
	Get(ctx context.Context, path string) (docstore.Document, bool, error)
	Set(ctx context.Context, path string, doc docstore.Document, merge bool) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, collection string) ([]docstore.Entry, error)
}

// Credentials is Anonymous, Token or EmailPassword.
type Credentials interface {
	isCredentials()
}

// Anonymous asks for a fresh anonymous identity.
type Anonymous struct{}

// Token resumes an existing session.
type Token string

// EmailPassword signs in to an existing account.
type EmailPassword struct {
	Email    string
	Password string
}

func (Anonymous) isCredentials()     {}
func (Token) isCredentials()         {}
func (EmailPassword) isCredentials() {}

type account struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    int64  `json:"createdAt"`
}

// Session is a stored login token.
type Session struct {
	Token     string      `json:"-"`
	UID       string      `json:"uid"`
	Email     string      `json:"email,omitempty"`
	Anonymous bool        `json:"anonymous"`
	CreatedAt int64       `json:"createdAt"`
	ExpiresAt int64       `json:"expiresAt"`
	View      view.Record `json:"view"`
}

// Identity returns the identity the session was issued for.
func (s Session) Identity() model.Identity {
	return model.Identity{UID: s.UID, Email: s.Email, Anonymous: s.Anonymous}
}

// Service authenticates users against accounts stored in the document store.
type Service struct {
	store    Store
	paths    model.Paths
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time
}

// New creates a Service. A zero ttl selects DefaultSessionTTL.
func New(store Store, paths model.Paths, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		store:    store,
		paths:    paths,
		ttl:      ttl,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Authenticate resolves credentials to an identity.
func (s *Service) Authenticate(ctx context.Context, c Credentials) (model.Identity, error) {
	switch v := c.(type) {
	case Anonymous:
		return model.Identity{UID: newUID(), Anonymous: true}, nil
	case Token:
		sess, err := s.Session(ctx, string(v))
		if err != nil {
			return model.Identity{}, err
		}
		if sess == nil {
			return model.Identity{}, ErrAuthFailed
		}
		return sess.Identity(), nil
	case EmailPassword:
		return s.signIn(ctx, v.Email, v.Password)
	}
	return model.Identity{}, fmt.Errorf("unsupported credentials %T", c)
}

// SignUp creates an email+password account.
func (s *Service) SignUp(ctx context.Context, email, password string) (model.Identity, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err := s.validate.Var(password, "min=6,max=72"); err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	path := s.paths.Account(email)
	_, exists, err := s.store.Get(ctx, path)
	if err != nil {
		return model.Identity{}, fmt.Errorf("look up account: %w", err)
	}
	if exists {
		return model.Identity{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.Identity{}, fmt.Errorf("hash password: %w", err)
	}
	acct := account{
		UID:          newUID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UnixMilli(),
	}
	doc, err := docstore.Encode(acct)
	if err != nil {
		return model.Identity{}, err
	}
	if err := s.store.Set(ctx, path, doc, false); err != nil {
		return model.Identity{}, fmt.Errorf("create account: %w", err)
	}
	slog.Info("created account", "uid", acct.UID, "email", email)
	return model.Identity{UID: acct.UID, Email: email}, nil
}

func (s *Service) signIn(ctx context.Context, email, password string) (model.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.Identity{}, ErrAuthFailed
	}
	doc, ok, err := s.store.Get(ctx, s.paths.Account(email))
	if err != nil {
		return model.Identity{}, fmt.Errorf("look up account: %w", err)
	}
	if !ok {
		return model.Identity{}, ErrAuthFailed
	}
	var acct account
	if err := docstore.Decode(doc, &acct); err != nil {
		return model.Identity{}, fmt.Errorf("decode account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return model.Identity{}, ErrAuthFailed
	}
	return model.Identity{UID: acct.UID, Email: acct.Email}, nil
}

// CreateSession issues a token for id starting at state v.
func (s *Service) CreateSession(ctx context.Context, id model.Identity, v view.Record) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	sess := Session{
		UID:       id.UID,
		Email:     id.Email,
		Anonymous: id.Anonymous,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(s.ttl).UnixMilli(),
		View:      v,
	}
	doc, err := docstore.Encode(sess)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, s.paths.AuthSession(token), doc, false); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// Session returns the session for token, or nil if not found or expired.
func (s *Service) Session(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	doc, ok, err := s.store.Get(ctx, s.paths.AuthSession(token))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var sess Session
	if err := docstore.Decode(doc, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.now().UnixMilli() > sess.ExpiresAt {
		_ = s.DeleteSession(ctx, token)
		return nil, nil
	}
	sess.Token = token
	return &sess, nil
}

// SaveView replaces the session's current screen state.
func (s *Service) SaveView(ctx context.Context, token string, v view.Record) error {
	doc, err := docstore.Encode(v)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, s.paths.AuthSession(token), map[string]any{"view": map[string]any(doc)})
}

// DeleteSession removes a token.
func (s *Service) DeleteSession(ctx context.Context, token string) error {
	return s.store.Delete(ctx, s.paths.AuthSession(token))
}

// CleanupExpiredSessions removes all expired tokens and reports how many.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int, error) {
	entries, err := s.store.List(ctx, s.paths.AuthSessions())
	if err != nil {
		return 0, err
	}
	now := s.now().UnixMilli()
	n := 0
	for _, e := range entries {
		var sess Session
		if err := docstore.Decode(e.Data, &sess); err != nil || now > sess.ExpiresAt {
			if err := s.DeleteSession(ctx, e.ID); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func newUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
