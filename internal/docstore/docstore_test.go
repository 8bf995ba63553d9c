package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStores(t *testing.T) map[string]*Store {
	t.Helper()
	sq, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	bb, err := NewBolt(filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("NewBolt: %v", err)
	}
	stores := map[string]*Store{
		"memory": New(NewMemory()),
		"sqlite": New(sq),
		"bolt":   New(bb),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

type testStudent struct {
	Name   string                    `json:"name"`
	Class  string                    `json:"classGroup"`
	Scores map[string]map[string]any `json:"scores,omitempty"`
}

func getStudent(t *testing.T, s *Store, path string) (testStudent, bool) {
	t.Helper()
	doc, ok, err := s.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get(%s): %v", path, err)
	}
	var st testStudent
	if ok {
		if err := Decode(doc, &st); err != nil {
			t.Fatalf("Decode: %v", err)
		}
	}
	return st, ok
}

func TestSetGetDelete(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := "tenants/t1/students/s1"

			if _, ok := getStudent(t, s, path); ok {
				t.Fatal("expected missing document")
			}
			if err := s.Set(ctx, path, Document{"name": "Kim", "classGroup": "1"}, false); err != nil {
				t.Fatalf("Set: %v", err)
			}
			st, ok := getStudent(t, s, path)
			if !ok || st.Name != "Kim" || st.Class != "1" {
				t.Fatalf("got %+v ok=%v", st, ok)
			}

			// Replace drops fields that are not written again.
			if err := s.Set(ctx, path, Document{"name": "Lee"}, false); err != nil {
				t.Fatalf("Set replace: %v", err)
			}
			st, _ = getStudent(t, s, path)
			if st.Name != "Lee" || st.Class != "" {
				t.Fatalf("after replace got %+v", st)
			}

			if err := s.Delete(ctx, path); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, ok := getStudent(t, s, path); ok {
				t.Fatal("document still present after delete")
			}
			if err := s.Delete(ctx, path); err != nil {
				t.Fatalf("second Delete: %v", err)
			}
		})
	}
}

func TestSetMerge(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := "tenants/t1/students/s1"
			if err := s.Set(ctx, path, Document{
				"name":   "Kim",
				"scores": map[string]any{"a": map[string]any{"score": 80}},
			}, false); err != nil {
				t.Fatal(err)
			}
			if err := s.Set(ctx, path, Document{
				"classGroup": "2",
				"scores":     map[string]any{"b": map[string]any{"score": 60}},
			}, true); err != nil {
				t.Fatal(err)
			}
			st, _ := getStudent(t, s, path)
			if st.Name != "Kim" || st.Class != "2" {
				t.Fatalf("merge lost top-level fields: %+v", st)
			}
			if len(st.Scores) != 2 {
				t.Fatalf("expected nested merge of 2 scores, got %v", st.Scores)
			}

			if err := s.Set(ctx, path, Document{"scores": map[string]any{"a": DeleteField}}, true); err != nil {
				t.Fatal(err)
			}
			st, _ = getStudent(t, s, path)
			if _, ok := st.Scores["a"]; ok || len(st.Scores) != 1 {
				t.Fatalf("DeleteField in merge: %v", st.Scores)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := "tenants/t1/students/s1"

			err := s.Update(ctx, path, map[string]any{"name": "x"})
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("Update on missing doc: want ErrNotFound, got %v", err)
			}

			if err := s.Set(ctx, path, Document{"name": "Kim"}, false); err != nil {
				t.Fatal(err)
			}
			err = s.Update(ctx, path, map[string]any{
				"scores.s1": map[string]any{"score": 100, "answers": []string{"1", "2"}},
			})
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			st, _ := getStudent(t, s, path)
			if st.Scores["s1"]["score"] != float64(100) {
				t.Fatalf("dotted update: %v", st.Scores)
			}

			if err := s.Update(ctx, path, map[string]any{"scores.s1": DeleteField}); err != nil {
				t.Fatal(err)
			}
			st, _ = getStudent(t, s, path)
			if len(st.Scores) != 0 || st.Name != "Kim" {
				t.Fatalf("delete field: %+v", st)
			}

			// Deleting below a missing parent is a no-op.
			if err := s.Update(ctx, path, map[string]any{"nothing.here": DeleteField}); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestListOrderAndIsolation(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"c", "a", "b"} {
				if err := s.Set(ctx, Join("tenants/t1/students", id), Document{"name": id}, false); err != nil {
					t.Fatal(err)
				}
			}
			// A nested collection sharing the prefix must not leak in.
			if err := s.Set(ctx, "tenants/t1/students/a/notes/n1", Document{"x": 1}, false); err != nil {
				t.Fatal(err)
			}
			if err := s.Set(ctx, "tenants/t2/students/z", Document{"name": "z"}, false); err != nil {
				t.Fatal(err)
			}

			entries, err := s.List(ctx, "tenants/t1/students")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var ids []string
			for _, e := range entries {
				ids = append(ids, e.ID)
			}
			if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
				t.Fatalf("ids = %v", ids)
			}

			empty, err := s.List(ctx, "tenants/none/students")
			if err != nil || len(empty) != 0 {
				t.Fatalf("empty list: %v, %v", empty, err)
			}
		})
	}
}

func TestSubscribe(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			coll := "tenants/t1/sessions"

			if err := s.Set(ctx, Join(coll, "s1"), Document{"title": "one"}, false); err != nil {
				t.Fatal(err)
			}
			ch, err := s.Subscribe(ctx, coll)
			if err != nil {
				t.Fatalf("Subscribe: %v", err)
			}
			first := receive(t, ch)
			if len(first.Entries) != 1 {
				t.Fatalf("initial snapshot: %+v", first)
			}

			if err := s.Set(ctx, Join(coll, "s2"), Document{"title": "two"}, false); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, Join(coll, "s1")); err != nil {
				t.Fatal(err)
			}
			// Snapshots are latest-wins, so drain until the final state shows up.
			deadline := time.After(2 * time.Second)
			for {
				select {
				case snap := <-ch:
					if len(snap.Entries) == 1 && snap.Entries[0].ID == "s2" {
						cancel()
						for range ch {
						}
						return
					}
				case <-deadline:
					t.Fatal("final snapshot never arrived")
				}
			}
		})
	}
}

func TestSubscribeIgnoresOtherCollections(t *testing.T) {
	s := New(NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "a/students")
	if err != nil {
		t.Fatal(err)
	}
	receive(t, ch)
	if err := s.Set(ctx, "b/students/x", Document{"name": "x"}, false); err != nil {
		t.Fatal(err)
	}
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		path     string
		wantColl string
		wantID   string
		wantErr  bool
	}{
		{"a/b", "a", "b", false},
		{"/artifacts/x/teachers/u1/", "artifacts/x/teachers", "u1", false},
		{"onlyid", "", "", true},
		{"coll/", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		coll, id, err := Split(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("Split(%q) err = %v", tt.path, err)
			continue
		}
		if coll != tt.wantColl || id != tt.wantID {
			t.Errorf("Split(%q) = %q, %q", tt.path, coll, id)
		}
	}
}

func TestOpen(t *testing.T) {
	if _, err := Open("postgres", ""); err == nil {
		t.Fatal("expected unknown driver error")
	}
	if _, err := Open("sqlite", ""); !errors.Is(err, ErrNoPath) {
		t.Fatalf("sqlite without path: %v", err)
	}
	s, err := Open("bolt", filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatalf("Open bolt: %v", err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
