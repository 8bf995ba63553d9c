// Package settings resolves per-class submission switches.
//
// Two stored shapes coexist: the legacy flat map of class name to boolean and
// the versioned document with class defaults plus per-session overrides.
// Decode picks the shape once at the store boundary; everything else works on
// the typed values.
package settings

import (
	"maps"
	"time"
)

// Version is the schema version written by Normalize.
const Version = 2

// Reserved top-level keys of a versioned document.
const (
	KeyVersion        = "version"
	KeyDefaultByClass = "defaultByClass"
	KeyBySession      = "bySession"
	KeyUpdatedAt      = "updatedAt"
)

// Settings is either Legacy or V2.
type Settings interface {
	isSettings()
}

// Legacy is the original flat class -> enabled map.
type Legacy map[string]bool

// V2 holds class-wide defaults and per-session overrides.
type V2 struct {
	DefaultByClass map[string]bool            `json:"defaultByClass"`
	BySession      map[string]map[string]bool `json:"bySession"`
	UpdatedAt      int64                      `json:"updatedAt"`

	// Stray holds legacy class keys that ended up at the top level of a
	// versioned document. Reads ignore them until Normalize folds them in.
	Stray map[string]bool `json:"-"`
}

func (Legacy) isSettings() {}
func (V2) isSettings()     {}

// Scope selects where a switch applies: the class default or one session.
type Scope string

// DefaultScope targets defaultByClass.
const DefaultScope Scope = ""

// SessionScope targets the overrides of one session.
func SessionScope(sessionID string) Scope {
	return Scope(sessionID)
}

// IsDefault reports whether the scope targets the class defaults.
func (s Scope) IsDefault() bool {
	return s == DefaultScope
}

// Decode converts a raw stored document into a typed value.
// A nil or empty document decodes to an empty Legacy map.
func Decode(raw map[string]any) Settings {
	if raw[KeyDefaultByClass] == nil && raw[KeyBySession] == nil {
		legacy := Legacy{}
		for k, v := range raw {
			if b, ok := v.(bool); ok {
				legacy[k] = b
			}
		}
		return legacy
	}

	v2 := V2{
		DefaultByClass: boolMap(raw[KeyDefaultByClass]),
		BySession:      map[string]map[string]bool{},
		UpdatedAt:      toInt64(raw[KeyUpdatedAt]),
	}
	if bySession, ok := raw[KeyBySession].(map[string]any); ok {
		for sessionID, classes := range bySession {
			v2.BySession[sessionID] = boolMap(classes)
		}
	}
	for k, v := range raw {
		if isReserved(k) {
			continue
		}
		if b, ok := v.(bool); ok {
			if v2.Stray == nil {
				v2.Stray = map[string]bool{}
			}
			v2.Stray[k] = b
		}
	}
	return v2
}

// Encode renders a normalized value as a storable document.
func Encode(v V2) map[string]any {
	defaults := make(map[string]any, len(v.DefaultByClass))
	for k, b := range v.DefaultByClass {
		defaults[k] = b
	}
	bySession := make(map[string]any, len(v.BySession))
	for sessionID, classes := range v.BySession {
		m := make(map[string]any, len(classes))
		for k, b := range classes {
			m[k] = b
		}
		bySession[sessionID] = m
	}
	return map[string]any{
		KeyVersion:        Version,
		KeyDefaultByClass: defaults,
		KeyBySession:      bySession,
		KeyUpdatedAt:      v.UpdatedAt,
	}
}

// CanSubmit reports whether classGroup may submit sessionID.
// A session override beats the class default; anything unset is open.
func CanSubmit(s Settings, classGroup, sessionID string) bool {
	switch v := s.(type) {
	case Legacy:
		if b, ok := v[classGroup]; ok {
			return b
		}
	case V2:
		if b, ok := v.BySession[sessionID][classGroup]; ok {
			return b
		}
		if b, ok := v.DefaultByClass[classGroup]; ok {
			return b
		}
	}
	return true
}

// Normalize converts any shape to a fresh V2 value stamped with now.
// Stray top-level booleans on a V2 document are folded into the defaults.
func Normalize(s Settings, now time.Time) V2 {
	out := V2{
		DefaultByClass: map[string]bool{},
		BySession:      map[string]map[string]bool{},
		UpdatedAt:      now.UnixMilli(),
	}
	switch v := s.(type) {
	case Legacy:
		maps.Copy(out.DefaultByClass, v)
	case V2:
		maps.Copy(out.DefaultByClass, v.DefaultByClass)
		maps.Copy(out.DefaultByClass, v.Stray)
		for sessionID, classes := range v.BySession {
			out.BySession[sessionID] = maps.Clone(classes)
			if out.BySession[sessionID] == nil {
				out.BySession[sessionID] = map[string]bool{}
			}
		}
	}
	return out
}

// SetAll sets every class in classes to value at scope, leaving other
// classes and sessions untouched.
func SetAll(s Settings, classes []string, scope Scope, value bool, now time.Time) V2 {
	out := Normalize(s, now)
	target := out.DefaultByClass
	if !scope.IsDefault() {
		target = out.BySession[string(scope)]
		if target == nil {
			target = map[string]bool{}
			out.BySession[string(scope)] = target
		}
	}
	for _, c := range classes {
		target[c] = value
	}
	return out
}

// Toggle flips the effective value of classGroup at scope.
func Toggle(s Settings, classGroup string, scope Scope, now time.Time) V2 {
	current := Enabled(s, classGroup, scope)
	return SetAll(s, []string{classGroup}, scope, !current, now)
}

// Enabled is the switch position shown for classGroup at scope.
func Enabled(s Settings, classGroup string, scope Scope) bool {
	return CanSubmit(Normalize(s, time.Time{}), classGroup, string(scope))
}

// SeedClasses returns the normalized settings with a true default for every
// class that has none yet. The second result reports whether anything changed.
func SeedClasses(s Settings, classes []string, now time.Time) (V2, bool) {
	out := Normalize(s, now)
	changed := false
	for _, c := range classes {
		if _, ok := out.DefaultByClass[c]; !ok {
			out.DefaultByClass[c] = true
			changed = true
		}
	}
	return out, changed
}

func isReserved(k string) bool {
	switch k {
	case KeyVersion, KeyDefaultByClass, KeyBySession, KeyUpdatedAt:
		return true
	}
	return false
}

func boolMap(v any) map[string]bool {
	out := map[string]bool{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, raw := range m {
		if b, ok := raw.(bool); ok {
			out[k] = b
		}
	}
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
