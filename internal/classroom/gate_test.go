package classroom

import (
	"context"
	"errors"
	"testing"

	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/model"
)

const testRoster = `경제A 30101 경다현 a001
경제B 30106 김혜인 A006
경제A 30102 박민수 A002`

func TestResolveTenant(t *testing.T) {
	svc := newTestService(t)
	newTestTenant(t, svc, "abcdef1234", "")
	ctx := context.Background()

	for _, code := range []string{"ABCDEF12", "abcdef12", "  AbCdEf12\t"} {
		tid, err := svc.ResolveTenant(ctx, code)
		if err != nil {
			t.Fatalf("ResolveTenant(%q): %v", code, err)
		}
		if tid != "abcdef1234" {
			t.Fatalf("ResolveTenant(%q) = %q", code, tid)
		}
	}

	for _, code := range []string{"", "  ", "ZZZZZZZZ", "abcdef1"} {
		if _, err := svc.ResolveTenant(ctx, code); !errors.Is(err, ErrLookupNotFound) {
			t.Errorf("ResolveTenant(%q) = %v, want ErrLookupNotFound", code, err)
		}
	}

	// An index row without a tenant id does not resolve.
	if err := svc.store.Set(ctx, svc.paths.TeacherIndex("EMPTY000"), docstore.Document{"email": "x"}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ResolveTenant(ctx, "empty000"); !errors.Is(err, ErrLookupNotFound) {
		t.Fatalf("row without tenantId: %v", err)
	}
}

func TestLoginStudent(t *testing.T) {
	svc := newTestService(t)
	newTestTenant(t, svc, "abcdef1234", testRoster)
	ctx := context.Background()

	tid, st, err := svc.LoginStudent(ctx, " abcdef12", "a001 ")
	if err != nil {
		t.Fatalf("LoginStudent: %v", err)
	}
	if tid != "abcdef1234" || st.Hakbun != "30101" || st.Name != "경다현" {
		t.Fatalf("got tenant %q student %+v", tid, st)
	}

	tests := []struct {
		name, teacher, student string
	}{
		{"wrong teacher code", "ZZZZZZZZ", "A001"},
		{"wrong student code", "ABCDEF12", "B999"},
		{"blank teacher code", "", "A001"},
		{"blank student code", "ABCDEF12", " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.LoginStudent(ctx, tt.teacher, tt.student)
			if !errors.Is(err, ErrLookupNotFound) {
				t.Fatalf("err = %v, want ErrLookupNotFound", err)
			}
			if err.Error() != ErrLookupNotFound.Error() {
				t.Fatalf("error text discloses the failing stage: %q", err)
			}
		})
	}
}

func TestResolveStudentSharedCode(t *testing.T) {
	svc := newTestService(t)
	newTestTenant(t, svc, "abcdef1234", "1반 30105 나중 DUP1\n1반 30101 먼저 dup1")

	st, err := svc.ResolveStudent(context.Background(), "abcdef1234", "DUP1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Hakbun != "30101" {
		t.Fatalf("shared code resolved to %s, want lowest hakbun 30101", st.Hakbun)
	}
}

func TestResolveStudentOtherTenant(t *testing.T) {
	svc := newTestService(t)
	newTestTenant(t, svc, "aaaaaaaa11", "1반 1 가 CODE1")
	newTestTenant(t, svc, "bbbbbbbb22", "")

	if _, _, err := svc.LoginStudent(context.Background(), "BBBBBBBB", "CODE1"); !errors.Is(err, ErrLookupNotFound) {
		t.Fatalf("student leaked across tenants: %v", err)
	}
}

func TestTeacherCode(t *testing.T) {
	tests := []struct{ uid, want string }{
		{"abcdef1234", "ABCDEF12"},
		{"abc", "ABC"},
		{"0123456789abcdef", "01234567"},
	}
	for _, tt := range tests {
		if got := model.TeacherCode(tt.uid); got != tt.want {
			t.Errorf("TeacherCode(%q) = %q, want %q", tt.uid, got, tt.want)
		}
	}
}
