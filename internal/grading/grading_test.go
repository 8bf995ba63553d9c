package grading

import (
	"testing"
	"time"
)

func TestGrade(t *testing.T) {
	key := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name    string
		answers []string
		key     []string
		want    int
	}{
		{"all correct", []string{"a", "b", "c", "d", "e"}, key, 100},
		{"case sensitive", []string{"a", "b", "c", "d", "e"}, []string{"a", "B", "c", "D", "e"}, 60},
		{"none correct", []string{"x", "x", "x", "x", "x"}, key, 0},
		{"whitespace trimmed", []string{" a", "b ", "\tc\n", "d", "e"}, key, 100},
		{"byte order mark trimmed", []string{"\ufeffa", "b\ufeff", "\u00a0c", "d\u3000", "e"}, key, 100},
		{"inner byte order mark kept", []string{"a\ufeffa", "b", "c", "d", "e"}, []string{"aa", "b", "c", "d", "e"}, 80},
		{"key trimmed too", []string{"a", "b", "c", "d", "e"}, []string{"a ", " b", "c", "d", "e"}, 100},
		{"short answer list", []string{"a", "b"}, key, 40},
		{"empty answers", nil, key, 0},
		{"empty key entry matches blank", []string{"", "b", "c", "d", "e"}, []string{"", "b", "c", "d", "e"}, 100},
		{"no key", []string{"a"}, nil, 0},
		{"three items round", []string{"a", "x", "x"}, []string{"a", "b", "c"}, 33},
		{"three items round up", []string{"a", "b", "x"}, []string{"a", "b", "c"}, 67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Grade(tt.answers, tt.key); got != tt.want {
				t.Errorf("Grade() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGradeDeterministic(t *testing.T) {
	answers := []string{"1", "2", "three", "4", "5"}
	key := []string{"1", "2", "3", "4", "5"}
	first := Grade(answers, key)
	for i := 0; i < 10; i++ {
		if got := Grade(answers, key); got != first {
			t.Fatalf("run %d: got %d, want %d", i, got, first)
		}
	}
	if first != 80 {
		t.Errorf("expected 80, got %d", first)
	}
}

func TestReview(t *testing.T) {
	res := Review([]string{"a", "x", "c"}, []string{"a", "b", "c", "d", "e"})
	if len(res.Items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(res.Items))
	}
	if res.UnitScore != 20 {
		t.Errorf("expected unit score 20, got %v", res.UnitScore)
	}
	if res.Score != 40 {
		t.Errorf("expected 40, got %d", res.Score)
	}
	if !res.Items[0].IsCorrect || res.Items[1].IsCorrect {
		t.Error("unexpected correctness for items 1-2")
	}
	if res.Items[4].No != 5 || res.Items[4].Submitted != "" || res.Items[4].Correct != "e" {
		t.Errorf("unexpected last item %+v", res.Items[4])
	}
}

func TestReviewMatchesStoredScore(t *testing.T) {
	key := []string{"10", "x+1", "B", "3", "-2"}
	answers := []string{"10", "x + 1", "B", " 3 ", "2"}
	stored := Grade(answers, key)
	if got := Review(answers, key).Score; got != stored {
		t.Errorf("recomputed %d, stored %d", got, stored)
	}
}

func TestFormatSubmittedAt(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Date(2025, 3, 4, 9, 5, 0, 0, time.UTC), "25.03.04(화) am 9:05"},
		{time.Date(2025, 3, 9, 0, 30, 0, 0, time.UTC), "25.03.09(일) am 12:30"},
		{time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC), "25.03.08(토) pm 12:00"},
		{time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC), "25.12.31(수) pm 11:59"},
	}
	for _, tt := range tests {
		if got := FormatSubmittedAt(tt.t); got != tt.want {
			t.Errorf("FormatSubmittedAt(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}
