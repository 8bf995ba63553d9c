// Package grading scores answer sets by exact match.
package grading

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// MaxScore is the score of a fully correct answer set.
const MaxScore = 100

// Grade compares each trimmed student answer with the trimmed key entry at
// the same index. Matching is case-sensitive and every item carries
// MaxScore/len(key) points; the sum is rounded to the nearest integer.
func Grade(studentAnswers, correctAnswers []string) int {
	return Review(studentAnswers, correctAnswers).Score
}

// Item is the outcome of one question.
type Item struct {
	No        int    `json:"no"`
	Submitted string `json:"submitted"`
	Correct   string `json:"correct"`
	IsCorrect bool   `json:"isCorrect"`
}

// Result is a per-item breakdown with the recomputed score.
type Result struct {
	Items     []Item  `json:"items"`
	UnitScore float64 `json:"unitScore"`
	Score     int     `json:"score"`
}

// Review recomputes a score item by item. It is the audit path for stored
// submissions and always agrees with Grade for the same inputs.
func Review(studentAnswers, correctAnswers []string) Result {
	n := len(correctAnswers)
	res := Result{Items: make([]Item, 0, n)}
	if n == 0 {
		return res
	}
	res.UnitScore = float64(MaxScore) / float64(n)

	var sum float64
	for i, correct := range correctAnswers {
		var submitted string
		if i < len(studentAnswers) {
			submitted = studentAnswers[i]
		}
		ok := trimAnswer(submitted) == trimAnswer(correct)
		if ok {
			sum += res.UnitScore
		}
		res.Items = append(res.Items, Item{
			No:        i + 1,
			Submitted: submitted,
			Correct:   correct,
			IsCorrect: ok,
		})
	}
	res.Score = int(math.Round(sum))
	return res
}

// trimAnswer strips surrounding white space, including the byte order mark
// that pasted text often carries.
func trimAnswer(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff'
	})
}

var weekdays = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// FormatSubmittedAt renders t as "yy.mm.dd(요일) am|pm h:mm".
func FormatSubmittedAt(t time.Time) string {
	h := t.Hour()
	ampm := "am"
	if h >= 12 {
		ampm = "pm"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%02d.%02d.%02d(%s) %s %d:%02d",
		t.Year()%100, int(t.Month()), t.Day(), weekdays[t.Weekday()], ampm, h, t.Minute())
}
