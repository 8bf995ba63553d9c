package classroom

import (
	"cmp"
	"context"
	"encoding/csv"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/pavelanni/classquiz/internal/model"
)

// ScoreTable builds the per-class score view. An empty or unknown class
// selects the first class in sort order.
func (s *Service) ScoreTable(ctx context.Context, tenantID, class string) (model.ScoreTable, error) {
	students, err := s.loadStudents(ctx, tenantID)
	if err != nil {
		return model.ScoreTable{}, err
	}
	sessions, err := s.ListSessions(ctx, tenantID)
	if err != nil {
		return model.ScoreTable{}, err
	}
	return buildScoreTable(students, sessions, class), nil
}

func buildScoreTable(students []model.Student, sessions []model.Session, class string) model.ScoreTable {
	table := model.ScoreTable{
		Classes:  classesOf(students),
		Sessions: make([]model.Session, 0, len(sessions)),
		Rows:     []model.ScoreRow{},
	}
	if table.Classes == nil {
		table.Classes = []string{}
	}
	for _, sess := range sessions {
		table.Sessions = append(table.Sessions, model.Session{ID: sess.ID, Title: sess.Title})
	}
	if !slices.Contains(table.Classes, class) {
		class = ""
		if len(table.Classes) > 0 {
			class = table.Classes[0]
		}
	}
	table.Class = class

	var members []model.Student
	for _, st := range students {
		if st.ClassGroup == class {
			members = append(members, st)
		}
	}
	slices.SortStableFunc(members, func(a, b model.Student) int {
		return cmp.Compare(a.Hakbun, b.Hakbun)
	})
	for _, st := range members {
		row := model.ScoreRow{Student: st, Scores: make([]*int, len(sessions))}
		// Orphaned submissions of deleted sessions are not part of the total.
		for i, sess := range sessions {
			if sub, ok := st.Submission(sess.ID); ok {
				score := sub.Score
				row.Scores[i] = &score
				row.Total += score
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

const utf8BOM = "\ufeff"

// WriteCSV writes a score table as spreadsheet-friendly CSV: a UTF-8 BOM,
// then 반,학번,이름,총점 and one column per session title.
func WriteCSV(w io.Writer, table model.ScoreTable) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := []string{"반", "학번", "이름", "총점"}
	for _, sess := range table.Sessions {
		header = append(header, sess.Title)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range table.Rows {
		rec := []string{row.Student.ClassGroup, row.Student.Hakbun, row.Student.Name, strconv.Itoa(row.Total)}
		for _, score := range row.Scores {
			if score == nil {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.Itoa(*score))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFilename is the download name for a class export on day t.
func CSVFilename(class string, t time.Time) string {
	if class == "" {
		class = "전체"
	}
	return "성적_" + class + "_" + t.Format("2006-01-02") + ".csv"
}
