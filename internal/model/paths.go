package model

import "strings"

// SettingsDocID is the id of the per-tenant class activation document.
const SettingsDocID = "classActiveSettings"

// Paths builds document and collection paths under one application id.
type Paths struct {
	AppID string
}

func (p Paths) root() string {
	app := p.AppID
	if app == "" {
		app = "default"
	}
	return "artifacts/" + app
}

func (p Paths) private(coll string) string { return p.root() + "/private/data/" + coll }

// Teachers is the platform-wide teacher collection.
func (p Paths) Teachers() string { return p.private("teachers") }

// Teacher is one teacher record.
func (p Paths) Teacher(uid string) string { return p.Teachers() + "/" + uid }

// Accounts holds email+password credentials keyed by lowercased email.
func (p Paths) Accounts() string { return p.private("accounts") }

func (p Paths) Account(email string) string {
	return p.Accounts() + "/" + strings.ToLower(strings.TrimSpace(email))
}

// AuthSessions holds login tokens.
func (p Paths) AuthSessions() string { return p.private("authSessions") }

func (p Paths) AuthSession(token string) string { return p.AuthSessions() + "/" + token }

// TeacherIndex maps teacher codes to tenants.
func (p Paths) TeacherIndex(code string) string {
	return p.root() + "/public/data/teacherIndex/" + code
}

func (p Paths) tenant(tenantID, coll string) string {
	return p.root() + "/tenants/" + tenantID + "/public/data/" + coll
}

func (p Paths) Students(tenantID string) string { return p.tenant(tenantID, "students") }

func (p Paths) Student(tenantID, id string) string { return p.Students(tenantID) + "/" + id }

func (p Paths) Sessions(tenantID string) string { return p.tenant(tenantID, "sessions") }

func (p Paths) Session(tenantID, id string) string { return p.Sessions(tenantID) + "/" + id }

func (p Paths) SettingsColl(tenantID string) string { return p.tenant(tenantID, "settings") }

// Settings is the class activation document of a tenant.
func (p Paths) Settings(tenantID string) string {
	return p.SettingsColl(tenantID) + "/" + SettingsDocID
}

// TeacherCode derives the public tenant alias: the first 8 characters of
// the uid, uppercased.
func TeacherCode(uid string) string {
	if len(uid) > 8 {
		uid = uid[:8]
	}
	return strings.ToUpper(uid)
}
