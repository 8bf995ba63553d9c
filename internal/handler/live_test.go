package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pavelanni/classquiz/internal/classroom"
	"github.com/pavelanni/classquiz/internal/model"
)

type rawLiveMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialLive(t *testing.T, srv *httptest.Server, c *testClient) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Cookie", sessionCookieName+"="+c.cookie(sessionCookieName))
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/live", header)
	if err != nil {
		t.Fatalf("dial live: %v (resp %v)", err, resp)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readLive reads messages until ok accepts one.
func readLive(t *testing.T, conn *websocket.Conn, ok func(rawLiveMessage) bool) rawLiveMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg rawLiveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read live: %v", err)
		}
		if ok(msg) {
			return msg
		}
	}
}

func TestLiveAdmin(t *testing.T) {
	srv, svc := newTestServer(t)
	admin, tenantID := newTestAdmin(t, srv, svc, "teacher@school.kr")
	conn := dialLive(t, srv, admin)

	first := readLive(t, conn, func(rawLiveMessage) bool { return true })
	if first.Type != liveTenant {
		t.Fatalf("first message type = %q", first.Type)
	}

	if _, err := svc.ImportStudents(context.Background(), tenantID, testRoster); err != nil {
		t.Fatal(err)
	}
	readLive(t, conn, func(m rawLiveMessage) bool {
		var snap classroom.TenantSnapshot
		if err := json.Unmarshal(m.Data, &snap); err != nil {
			t.Fatal(err)
		}
		return snap.TenantID == tenantID && len(snap.Students) == 3
	})
}

func TestLiveStudent(t *testing.T) {
	srv, svc := newTestServer(t)
	admin, tenantID := newTestAdmin(t, srv, svc, "teacher@school.kr")
	if _, err := svc.ImportStudents(context.Background(), tenantID, testRoster); err != nil {
		t.Fatal(err)
	}
	student := newTestStudent(t, srv, tenantID, "A001")
	conn := dialLive(t, srv, student)

	first := readLive(t, conn, func(rawLiveMessage) bool { return true })
	if first.Type != liveDashboard {
		t.Fatalf("first message type = %q", first.Type)
	}

	admin.expect(admin.do(http.MethodPost, "/api/admin/sessions",
		classroom.NewSession{Title: "1차시", Answers: testAnswers}), http.StatusCreated, nil)
	msg := readLive(t, conn, func(m rawLiveMessage) bool {
		var dash model.StudentDashboard
		if err := json.Unmarshal(m.Data, &dash); err != nil {
			t.Fatal(err)
		}
		return len(dash.Entries) == 1
	})
	if strings.Contains(string(msg.Data), `"answers":["1"`) {
		t.Fatalf("answer key leaked to student feed: %s", msg.Data)
	}

	var dash model.StudentDashboard
	json.Unmarshal(msg.Data, &dash)
	admin.expect(admin.do(http.MethodDelete, "/api/admin/students/"+dash.Student.ID, nil), http.StatusNoContent, nil)
	readLive(t, conn, func(m rawLiveMessage) bool { return m.Type == liveRemoved })
}

func TestLiveRequiresLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/live", nil)
	if err == nil {
		t.Fatal("dial without session succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %v", resp)
	}
}
