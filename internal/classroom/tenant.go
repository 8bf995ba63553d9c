package classroom

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/model"
	"github.com/pavelanni/classquiz/internal/settings"
)

// TenantSnapshot is the full state of a tenant at one moment.
type TenantSnapshot struct {
	TenantID string          `json:"tenantId"`
	Students []model.Student `json:"students"`
	Sessions []model.Session `json:"sessions"`
	Settings settings.V2     `json:"settings"`

	raw settings.Settings
}

// Dashboard derives one student's dashboard from the snapshot.
func (ts TenantSnapshot) Dashboard(studentID string) (model.StudentDashboard, bool) {
	for _, st := range ts.Students {
		if st.ID == studentID {
			return buildDashboard(st, ts.Sessions, ts.raw), true
		}
	}
	return model.StudentDashboard{}, false
}

// Tenant is a live view of one tenant's students, sessions and settings.
// Each value on Updates fully replaces the previous one.
type Tenant struct {
	ID      string
	updates chan TenantSnapshot
	cancel  context.CancelFunc
	done    chan struct{}
}

// OpenTenant subscribes to a tenant's three collections. The first update
// arrives once all three have delivered their initial snapshot.
func (s *Service) OpenTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	ctx, cancel := context.WithCancel(ctx)
	students, err := s.store.Subscribe(ctx, s.paths.Students(tenantID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe students: %w", err)
	}
	sessions, err := s.store.Subscribe(ctx, s.paths.Sessions(tenantID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe sessions: %w", err)
	}
	settingsCh, err := s.store.Subscribe(ctx, s.paths.SettingsColl(tenantID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe settings: %w", err)
	}
	t := &Tenant{
		ID:      tenantID,
		updates: make(chan TenantSnapshot, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go t.run(students, sessions, settingsCh)
	slog.Debug("tenant feed opened", "tenant", tenantID)
	return t, nil
}

// Updates streams snapshots until Close.
func (t *Tenant) Updates() <-chan TenantSnapshot { return t.updates }

// Close ends the subscriptions and waits for the feed to stop.
func (t *Tenant) Close() {
	t.cancel()
	<-t.done
}

func (t *Tenant) run(students, sessions, settingsCh <-chan docstore.Snapshot) {
	defer close(t.done)
	defer close(t.updates)

	snap := TenantSnapshot{TenantID: t.ID, raw: settings.Legacy{}}
	var haveStudents, haveSessions, haveSettings bool
	for {
		select {
		case s, ok := <-students:
			if !ok {
				return
			}
			list, err := decodeStudents(s.Entries)
			if err != nil {
				slog.Warn("bad student snapshot", "tenant", t.ID, "error", err)
				continue
			}
			snap.Students, haveStudents = list, true
		case s, ok := <-sessions:
			if !ok {
				return
			}
			list, err := decodeSessions(s.Entries)
			if err != nil {
				slog.Warn("bad session snapshot", "tenant", t.ID, "error", err)
				continue
			}
			snap.Sessions, haveSessions = list, true
		case s, ok := <-settingsCh:
			if !ok {
				return
			}
			snap.raw = settings.Legacy{}
			for _, e := range s.Entries {
				if e.ID == model.SettingsDocID {
					snap.raw = settings.Decode(e.Data)
				}
			}
			snap.Settings = viewSettings(snap.raw)
			haveSettings = true
		}
		if haveStudents && haveSessions && haveSettings {
			publishLatest(t.updates, snap)
		}
	}
}

// viewSettings presents any stored shape as V2 without restamping it.
func viewSettings(raw settings.Settings) settings.V2 {
	var stamp int64
	if v, ok := raw.(settings.V2); ok {
		stamp = v.UpdatedAt
	}
	return settings.Normalize(raw, time.UnixMilli(stamp))
}

func publishLatest(ch chan TenantSnapshot, snap TenantSnapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
