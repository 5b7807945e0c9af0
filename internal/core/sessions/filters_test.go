package sessions

import (
	"testing"
	"time"
)

func TestParseQuery_PlainText(t *testing.T) {
	f := ParseQuery("hello world")
	if f.Text != "hello world" {
		t.Errorf("Text = %q, want %q", f.Text, "hello world")
	}
	if f.Project != "" || f.HasAfter || f.HasBefore {
		t.Errorf("unexpected filters parsed: %+v", f)
	}
}

func TestParseQuery_ProjectToken(t *testing.T) {
	f := ParseQuery("project:/home/user/app refactor plan")
	if f.Project != "/home/user/app" {
		t.Errorf("Project = %q", f.Project)
	}
	if f.Text != "refactor plan" {
		t.Errorf("Text = %q", f.Text)
	}
}

func TestParseQuery_DateTokens(t *testing.T) {
	f := ParseQuery("after:2024-11-01 before:2024-12-01 deploy")
	if !f.HasAfter || !f.HasBefore {
		t.Fatalf("date flags not set: %+v", f)
	}
	if f.After.Year() != 2024 || f.After.Month() != time.November {
		t.Errorf("After = %v", f.After)
	}
	if f.Before.Month() != time.December {
		t.Errorf("Before = %v", f.Before)
	}
	if f.Text != "deploy" {
		t.Errorf("Text = %q", f.Text)
	}
}

func TestParseQuery_NaturalLanguageDate(t *testing.T) {
	f := ParseQuery("after:yesterday bug")
	if !f.HasAfter {
		t.Fatal("natural-language date not parsed")
	}
	if time.Since(f.After) > 48*time.Hour {
		t.Errorf("After = %v, want within the last two days", f.After)
	}
}

func TestParseQuery_UnparseableDateIgnored(t *testing.T) {
	f := ParseQuery("after:nonsense-不明 fix")
	if f.HasAfter {
		t.Errorf("HasAfter = true for unparseable date")
	}
	if f.Text != "fix" {
		t.Errorf("Text = %q", f.Text)
	}
}

func TestFilters_Matches(t *testing.T) {
	base := time.Date(2024, 11, 15, 12, 0, 0, 0, time.UTC)
	f := Filters{
		Project:   "app",
		After:     base.Add(-24 * time.Hour),
		Before:    base.Add(24 * time.Hour),
		HasAfter:  true,
		HasBefore: true,
	}

	tests := []struct {
		name    string
		project string
		ts      int64
		want    bool
	}{
		{"inside window", "/home/user/app", base.UnixMilli(), true},
		{"wrong project", "/home/user/other", base.UnixMilli(), false},
		{"too early", "/home/user/app", base.Add(-48 * time.Hour).UnixMilli(), false},
		{"too late", "/home/user/app", base.Add(48 * time.Hour).UnixMilli(), false},
		{"project case-insensitive", "/home/user/APP", base.UnixMilli(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.matches(tt.project, tt.ts); got != tt.want {
				t.Errorf("matches(%q, %d) = %v, want %v", tt.project, tt.ts, got, tt.want)
			}
		})
	}
}
