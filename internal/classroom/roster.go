package classroom

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/model"
	"github.com/pavelanni/classquiz/internal/settings"
)

// RosterLine is one parsed line of a pasted roster.
type RosterLine struct {
	ClassGroup string
	Hakbun     string
	Name       string
	Code       string
}

// ParseRoster reads "classGroup hakbun name code" lines. Non-blank lines
// with fewer than four fields are counted in short and dropped; extra
// fields are ignored. Codes are uppercased.
func ParseRoster(text string) (lines []RosterLine, short int) {
	for _, raw := range strings.Split(text, "\n") {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			short++
			continue
		}
		lines = append(lines, RosterLine{
			ClassGroup: fields[0],
			Hakbun:     fields[1],
			Name:       fields[2],
			Code:       normalizeCode(fields[3]),
		})
	}
	return lines, short
}

// ImportStudents adds every roster line whose roll number is not stored yet
// (nor seen earlier in the same paste). Classes in the paste that have no
// switch default get one set to open.
func (s *Service) ImportStudents(ctx context.Context, tenantID, text string) (model.ImportResult, error) {
	var res model.ImportResult
	lines, short := ParseRoster(text)
	res.SkippedShort = short
	if len(lines) == 0 {
		return res, nil
	}

	existing, err := s.loadStudents(ctx, tenantID)
	if err != nil {
		return res, err
	}
	known := make(map[string]bool, len(existing))
	codes := make(map[string]bool, len(existing))
	for _, st := range existing {
		known[st.Hakbun] = true
		codes[normalizeCode(st.Code)] = true
	}

	var batchClasses []string
	for _, line := range lines {
		if !slices.Contains(batchClasses, line.ClassGroup) {
			batchClasses = append(batchClasses, line.ClassGroup)
		}
		if known[line.Hakbun] {
			res.SkippedDuplicate++
			continue
		}
		known[line.Hakbun] = true
		if codes[line.Code] {
			slog.Warn("imported student code already in use", "tenant", tenantID, "hakbun", line.Hakbun)
		}
		codes[line.Code] = true

		st := model.Student{
			ID:         newStudentID(),
			ClassGroup: line.ClassGroup,
			Hakbun:     line.Hakbun,
			Name:       line.Name,
			Code:       line.Code,
			Scores:     map[string]model.Submission{},
		}
		doc, err := docstore.Encode(st)
		if err != nil {
			return res, err
		}
		if err := s.store.Set(ctx, s.paths.Student(tenantID, st.ID), doc, false); err != nil {
			return res, fmt.Errorf("add student %s: %w", st.Hakbun, err)
		}
		res.Added = append(res.Added, st)
	}

	cur, err := s.LoadSettings(ctx, tenantID)
	if err != nil {
		return res, err
	}
	for _, c := range batchClasses {
		if !hasDefault(cur, c) {
			res.NewClasses = append(res.NewClasses, c)
		}
	}
	if next, changed := settings.SeedClasses(cur, batchClasses, s.now()); changed {
		if err := s.saveSettings(ctx, tenantID, next); err != nil {
			return res, err
		}
	}
	slog.Info("students imported", "tenant", tenantID,
		"added", len(res.Added), "duplicates", res.SkippedDuplicate, "short", res.SkippedShort)
	return res, nil
}

// DeleteStudent removes a student and their submissions.
func (s *Service) DeleteStudent(ctx context.Context, tenantID, id string) error {
	if err := s.store.Delete(ctx, s.paths.Student(tenantID, id)); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	slog.Info("student deleted", "tenant", tenantID, "student", id)
	return nil
}

func hasDefault(s settings.Settings, class string) bool {
	_, ok := settings.Normalize(s, time.Time{}).DefaultByClass[class]
	return ok
}
