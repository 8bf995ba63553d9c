package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateKorean(t *testing.T) {
	ctx := initLang(t, "ko")

	if got := T(ctx, "ErrSubmissionClosed"); got != "제출 기간 아님" {
		t.Errorf("T(ErrSubmissionClosed) = %q", got)
	}
	if got := T(ctx, "AppTitle"); got != "학습지 자동 채점" {
		t.Errorf("T(AppTitle) = %q", got)
	}
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "ErrAlreadySubmitted"); got != "You have already submitted this worksheet." {
		t.Errorf("T(ErrAlreadySubmitted) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "StudentsImported", 1); got != "Added 1 student." {
		t.Errorf("Tp(StudentsImported, 1) = %q", got)
	}
	if got := Tp(ctx, "StudentsImported", 3); got != "Added 3 students." {
		t.Errorf("Tp(StudentsImported, 3) = %q", got)
	}

	ctx = initLang(t, "ko")
	if got := Tp(ctx, "StudentsImported", 1); got != "학생 1명을 등록했습니다." {
		t.Errorf("Tp(StudentsImported, 1) ko = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "ko")

	got := Td(ctx, "SubmissionScore", map[string]any{"Score": 80})
	if got != "80점" {
		t.Errorf("Td(SubmissionScore, 80) = %q, want '80점'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestInitUnsupported(t *testing.T) {
	if err := Init("fr"); err == nil {
		t.Fatal("Init(fr) succeeded without a locale file")
	}
	if err := Init("not a tag!"); err == nil {
		t.Fatal("Init accepted a malformed tag")
	}
	// restore a usable bundle for the remaining tests
	initLang(t, "ko")
}

func TestMiddleware(t *testing.T) {
	initLang(t, "ko")

	var got string
	h := Middleware("ko")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrNotFound")
	}))

	tests := []struct {
		url  string
		want string
	}{
		{"/", "요청한 항목을 찾을 수 없습니다."},
		{"/?lang=en", "The requested item was not found."},
		{"/?lang=fr", "요청한 항목을 찾을 수 없습니다."},
	}
	for _, tt := range tests {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.url, nil))
		if got != tt.want {
			t.Errorf("GET %s: %q, want %q", tt.url, got, tt.want)
		}
	}
}
