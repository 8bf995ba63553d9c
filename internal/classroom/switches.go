package classroom

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/settings"
)

// SwitchRow is one class switch at a scope.
type SwitchRow struct {
	ClassGroup string `json:"classGroup"`
	Enabled    bool   `json:"enabled"`
}

// SwitchBoard is the admin view of class switches for one scope.
type SwitchBoard struct {
	Scope string      `json:"scope"`
	Rows  []SwitchRow `json:"rows"`
}

// SwitchBoard lists every class's effective switch at scope.
func (s *Service) SwitchBoard(ctx context.Context, tenantID string, scope settings.Scope) (SwitchBoard, error) {
	cur, err := s.LoadSettings(ctx, tenantID)
	if err != nil {
		return SwitchBoard{}, err
	}
	classes, err := s.Classes(ctx, tenantID)
	if err != nil {
		return SwitchBoard{}, err
	}
	board := SwitchBoard{Scope: string(scope), Rows: make([]SwitchRow, 0, len(classes))}
	for _, c := range classes {
		board.Rows = append(board.Rows, SwitchRow{ClassGroup: c, Enabled: settings.Enabled(cur, c, scope)})
	}
	return board, nil
}

// ToggleClass flips one class switch at scope and stores the normalized result.
func (s *Service) ToggleClass(ctx context.Context, tenantID, classGroup string, scope settings.Scope) (settings.V2, error) {
	if classGroup == "" {
		return settings.V2{}, fmt.Errorf("%w: class required", ErrInvalidInput)
	}
	cur, err := s.LoadSettings(ctx, tenantID)
	if err != nil {
		return settings.V2{}, err
	}
	next := settings.Toggle(cur, classGroup, scope, s.now())
	if err := s.saveSettings(ctx, tenantID, next); err != nil {
		return settings.V2{}, err
	}
	slog.Info("class switch toggled", "tenant", tenantID, "class", classGroup, "scope", string(scope))
	return next, nil
}

// SetAllClasses sets every known class to value at scope.
func (s *Service) SetAllClasses(ctx context.Context, tenantID string, scope settings.Scope, value bool) (settings.V2, error) {
	cur, err := s.LoadSettings(ctx, tenantID)
	if err != nil {
		return settings.V2{}, err
	}
	classes, err := s.Classes(ctx, tenantID)
	if err != nil {
		return settings.V2{}, err
	}
	next := settings.SetAll(cur, classes, scope, value, s.now())
	if err := s.saveSettings(ctx, tenantID, next); err != nil {
		return settings.V2{}, err
	}
	slog.Info("class switches set", "tenant", tenantID, "scope", string(scope), "value", value, "classes", len(classes))
	return next, nil
}

// saveSettings replaces the settings document so no legacy keys survive.
func (s *Service) saveSettings(ctx context.Context, tenantID string, v settings.V2) error {
	if err := s.store.Set(ctx, s.paths.Settings(tenantID), docstore.Document(settings.Encode(v)), false); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
