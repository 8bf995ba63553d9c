package classroom

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestScoreTableAndCSV(t *testing.T) {
	svc := newTestService(t)
	newTestTenant(t, svc, "tenant0001", "경제A 30102 박민수 A002\n경제A 30101 \"경,다현\" A001\n경제B 30106 김혜인 A006")
	ctx := context.Background()
	s1 := createTestSession(t, svc, "tenant0001", "1차시", "1", "2", "3", "4", "5")
	s2 := createTestSession(t, svc, "tenant0001", "2차시, 복습", "1", "2", "3", "4", "5")

	first := studentByHakbun(t, svc, "tenant0001", "30101")
	if _, err := svc.Submit(ctx, "tenant0001", first.ID, s1.ID, []string{"1", "2", "3", "4", "5"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Submit(ctx, "tenant0001", first.ID, s2.ID, []string{"1", "2", "", "", ""}); err != nil {
		t.Fatal(err)
	}

	table, err := svc.ScoreTable(ctx, "tenant0001", "")
	if err != nil {
		t.Fatal(err)
	}
	if table.Class != "경제A" || len(table.Classes) != 2 || len(table.Rows) != 2 {
		t.Fatalf("table = %+v", table)
	}
	if table.Rows[0].Student.Hakbun != "30101" || table.Rows[0].Total != 140 {
		t.Fatalf("first row = %+v", table.Rows[0])
	}
	if table.Rows[1].Scores[0] != nil || table.Rows[1].Total != 0 {
		t.Fatalf("second row = %+v", table.Rows[1])
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, table); err != nil {
		t.Fatal(err)
	}
	want := "\ufeff반,학번,이름,총점,1차시,\"2차시, 복습\"\n" +
		"경제A,30101,\"\"\"경,다현\"\"\",140,100,40\n" +
		"경제A,30102,박민수,0,,\n"
	if got := buf.String(); got != want {
		t.Fatalf("csv =\n%q\nwant\n%q", got, want)
	}
}

func TestScoreTableIgnoresDeletedSessions(t *testing.T) {
	svc := newTestService(t)
	newTestTenant(t, svc, "tenant0001", testRoster)
	ctx := context.Background()
	s1 := createTestSession(t, svc, "tenant0001", "1차시", "1", "2", "3", "4", "5")
	st := studentByHakbun(t, svc, "tenant0001", "30101")
	if _, err := svc.Submit(ctx, "tenant0001", st.ID, s1.ID, []string{"1", "2", "3", "4", "5"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteSession(ctx, "tenant0001", s1.ID); err != nil {
		t.Fatal(err)
	}

	table, err := svc.ScoreTable(ctx, "tenant0001", "경제A")
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Sessions) != 0 || table.Rows[0].Total != 0 {
		t.Fatalf("orphaned submission counted: %+v", table.Rows[0])
	}
	// The student record keeps its own copy of the score.
	if studentByHakbun(t, svc, "tenant0001", "30101").TotalScore() != 100 {
		t.Fatal("orphaned submission lost")
	}
}

func TestScoreTableEmpty(t *testing.T) {
	table := buildScoreTable(nil, nil, "아무반")
	if table.Class != "" || len(table.Rows) != 0 || table.Classes == nil {
		t.Fatalf("empty table = %+v", table)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, table); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "\ufeff반,학번,이름,총점\n") {
		t.Fatalf("csv = %q", buf.String())
	}
}

func TestCSVFilename(t *testing.T) {
	day := time.Date(2025, 3, 4, 23, 0, 0, 0, time.UTC)
	if got := CSVFilename("경제A", day); got != "성적_경제A_2025-03-04.csv" {
		t.Fatalf("got %q", got)
	}
	if got := CSVFilename("", day); got != "성적_전체_2025-03-04.csv" {
		t.Fatalf("got %q", got)
	}
}
