// Package view is the screen state machine of one signed-in browser session.
// States carry their own payload and change only through Apply.
package view

import (
	"errors"
	"fmt"

	"github.com/pavelanni/classquiz/internal/model"
)

// ErrInvalidTransition is returned when an action does not apply to a state.
var ErrInvalidTransition = errors.New("invalid view transition")

// Kind names a screen.
type Kind string

const (
	KindLogin          Kind = "login"
	KindTeacherPending Kind = "teacherPending"
	KindAdmin          Kind = "admin"
	KindStudent        Kind = "student"
	KindTest           Kind = "test"
)

// State is one of Login, TeacherPending, Admin, Student or Test.
type State interface {
	Kind() Kind
}

type Login struct{}

// TeacherPending is shown to signed-in teachers awaiting approval.
type TeacherPending struct {
	Email string
}

// Admin is the approved teacher's dashboard of their own tenant.
type Admin struct {
	TenantID string
	Email    string
}

// Student is the student dashboard.
type Student struct {
	TenantID  string
	StudentID string
}

// Test is a student taking one session.
type Test struct {
	TenantID  string
	StudentID string
	SessionID string
}

func (Login) Kind() Kind          { return KindLogin }
func (TeacherPending) Kind() Kind { return KindTeacherPending }
func (Admin) Kind() Kind          { return KindAdmin }
func (Student) Kind() Kind        { return KindStudent }
func (Test) Kind() Kind           { return KindTest }

// Role is the user role a state grants.
func Role(s State) model.UserRole {
	switch s.(type) {
	case Admin:
		return model.UserRoleAdmin
	case TeacherPending:
		return model.UserRoleTeacher
	case Student, Test:
		return model.UserRoleStudent
	}
	return ""
}

// Action is an input to the state machine.
type Action interface {
	isAction()
}

// TeacherSignedIn is a credentialed teacher arriving with a known status.
type TeacherSignedIn struct {
	Teacher model.Teacher
}

// StudentLoggedIn is a successful teacher code + student code login.
type StudentLoggedIn struct {
	TenantID  string
	StudentID string
}

// StartTest opens a session's answer sheet.
type StartTest struct {
	SessionID string
}

// LeaveTest returns to the dashboard without submitting.
type LeaveTest struct{}

// FinishTest returns to the dashboard after a submission.
type FinishTest struct{}

// Logout returns to the login screen from anywhere.
type Logout struct{}

func (TeacherSignedIn) isAction() {}
func (StudentLoggedIn) isAction() {}
func (StartTest) isAction()       {}
func (LeaveTest) isAction()       {}
func (FinishTest) isAction()      {}
func (Logout) isAction()          {}

// Apply returns the state reached from s by a.
func Apply(s State, a Action) (State, error) {
	if _, ok := a.(Logout); ok {
		return Login{}, nil
	}
	switch cur := s.(type) {
	case Login, TeacherPending, Admin:
		switch act := a.(type) {
		case TeacherSignedIn:
			return teacherState(act.Teacher), nil
		case StudentLoggedIn:
			if _, isLogin := cur.(Login); isLogin {
				return Student{TenantID: act.TenantID, StudentID: act.StudentID}, nil
			}
		}
	case Student:
		if act, ok := a.(StartTest); ok && act.SessionID != "" {
			return Test{TenantID: cur.TenantID, StudentID: cur.StudentID, SessionID: act.SessionID}, nil
		}
	case Test:
		switch a.(type) {
		case LeaveTest, FinishTest:
			return Student{TenantID: cur.TenantID, StudentID: cur.StudentID}, nil
		}
	}
	return s, fmt.Errorf("%w: %T in %s", ErrInvalidTransition, a, kindOf(s))
}

func teacherState(t model.Teacher) State {
	if t.Approved() {
		return Admin{TenantID: t.UID, Email: t.Email}
	}
	return TeacherPending{Email: t.Email}
}

func kindOf(s State) Kind {
	if s == nil {
		return ""
	}
	return s.Kind()
}

// Record is the flat persisted form of a State.
type Record struct {
	Kind      Kind   `json:"kind"`
	Email     string `json:"email,omitempty"`
	TenantID  string `json:"tenantId,omitempty"`
	StudentID string `json:"studentId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Encode flattens s.
func Encode(s State) Record {
	switch v := s.(type) {
	case TeacherPending:
		return Record{Kind: KindTeacherPending, Email: v.Email}
	case Admin:
		return Record{Kind: KindAdmin, TenantID: v.TenantID, Email: v.Email}
	case Student:
		return Record{Kind: KindStudent, TenantID: v.TenantID, StudentID: v.StudentID}
	case Test:
		return Record{Kind: KindTest, TenantID: v.TenantID, StudentID: v.StudentID, SessionID: v.SessionID}
	}
	return Record{Kind: KindLogin}
}

// Decode rebuilds a State. Records missing their payload fall back to Login.
func Decode(r Record) State {
	switch r.Kind {
	case KindTeacherPending:
		return TeacherPending{Email: r.Email}
	case KindAdmin:
		if r.TenantID != "" {
			return Admin{TenantID: r.TenantID, Email: r.Email}
		}
	case KindStudent:
		if r.TenantID != "" && r.StudentID != "" {
			return Student{TenantID: r.TenantID, StudentID: r.StudentID}
		}
	case KindTest:
		if r.TenantID != "" && r.StudentID != "" && r.SessionID != "" {
			return Test{TenantID: r.TenantID, StudentID: r.StudentID, SessionID: r.SessionID}
		}
	}
	return Login{}
}
