package streamid

import (
	"errors"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{
			name:  "simple title",
			title: "Add auth",
			want:  "add-auth",
		},
		{
			name:  "symbols collapse to single hyphens",
			title: "Fix  (flaky!!)   CI",
			want:  "fix-flaky-ci",
		},
		{
			name:  "leading and trailing junk trimmed",
			title: "  --Refactor parser--  ",
			want:  "refactor-parser",
		},
		{
			name:  "mixed case lowered",
			title: "OAuth2 Token Refresh",
			want:  "oauth2-token-refresh",
		},
		{
			name:  "empty title falls back",
			title: "!!!",
			want:  "untitled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.title); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSlugify_LengthCap(t *testing.T) {
	long := strings.Repeat("very long title ", 10)
	slug := Slugify(long)
	if len(slug) > MaxSlugLength {
		t.Errorf("slug length = %d, want <= %d", len(slug), MaxSlugLength)
	}
	if strings.HasSuffix(slug, "-") {
		t.Errorf("slug %q has trailing hyphen after truncation", slug)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		epoch   string
		counter int
		want    string
	}{
		{"15", 0, "1500"},
		{"15", 1, "1501"},
		{"15", 42, "1542"},
		{"3", 7, "307"},
		{"15", 99, "1599"},
	}

	for _, tt := range tests {
		if got := FormatNumber(tt.epoch, tt.counter); got != tt.want {
			t.Errorf("FormatNumber(%q, %d) = %q, want %q", tt.epoch, tt.counter, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		wantEpoch  string
		wantCount  int
		wantSuffix string
		wantSlug   string
		wantErr    bool
	}{
		{
			name:      "main stream",
			id:        "1500-add-auth",
			wantEpoch: "15",
			wantCount: 0,
			wantSlug:  "add-auth",
		},
		{
			name:       "sub-stream",
			id:         "1500a-auth-tokens",
			wantEpoch:  "15",
			wantCount:  0,
			wantSuffix: "a",
			wantSlug:   "auth-tokens",
		},
		{
			name:      "single digit epoch",
			id:        "307-fix-ci",
			wantEpoch: "3",
			wantCount: 7,
			wantSlug:  "fix-ci",
		},
		{
			name:    "missing slug",
			id:      "1500",
			wantErr: true,
		},
		{
			name:    "non-numeric epoch",
			id:      "ab00-thing",
			wantErr: true,
		},
		{
			name:    "number too short",
			id:      "15-thing",
			wantErr: true,
		},
		{
			name:    "legacy id shape",
			id:      "stream-42",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := Parse(tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded, want error", tt.id)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.id, err)
			}
			if parts.Epoch != tt.wantEpoch {
				t.Errorf("Epoch = %q, want %q", parts.Epoch, tt.wantEpoch)
			}
			if parts.Counter != tt.wantCount {
				t.Errorf("Counter = %d, want %d", parts.Counter, tt.wantCount)
			}
			if parts.Suffix != tt.wantSuffix {
				t.Errorf("Suffix = %q, want %q", parts.Suffix, tt.wantSuffix)
			}
			if parts.Slug != tt.wantSlug {
				t.Errorf("Slug = %q, want %q", parts.Slug, tt.wantSlug)
			}
		})
	}
}

func TestParts_Number(t *testing.T) {
	parts, err := Parse("1500a-auth-tokens")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got := parts.Number(); got != "1500a" {
		t.Errorf("Number() = %q, want %q", got, "1500a")
	}
	if parts.IsMain() {
		t.Error("IsMain() = true for sub-stream id")
	}
}

func TestNextCounter(t *testing.T) {
	t.Run("returns counter below cap", func(t *testing.T) {
		c, err := NextCounter("15", 42)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c != 42 {
			t.Errorf("counter = %d, want 42", c)
		}
	})

	t.Run("fails at cap with remediations", func(t *testing.T) {
		_, err := NextCounter("15", 100)
		if err == nil {
			t.Fatal("expected capacity error, got nil")
		}
		var capErr *CapacityError
		if !errors.As(err, &capErr) {
			t.Fatalf("expected *CapacityError, got %T", err)
		}
		if capErr.Limit != MaxMainStreamsPerEpoch {
			t.Errorf("Limit = %d, want %d", capErr.Limit, MaxMainStreamsPerEpoch)
		}
		if len(capErr.Remediations) != 3 {
			t.Errorf("got %d remediations, want 3", len(capErr.Remediations))
		}
		msg := err.Error()
		for _, want := range []string{"sub-stream", "epoch", "archive"} {
			if !strings.Contains(msg, want) {
				t.Errorf("error %q missing remediation keyword %q", msg, want)
			}
		}
	})
}

func TestNextSuffix(t *testing.T) {
	t.Run("first suffix is a", func(t *testing.T) {
		s, err := NextSuffix("1500-add-auth", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if s != "a" {
			t.Errorf("suffix = %q, want %q", s, "a")
		}
	})

	t.Run("smallest unused letter wins", func(t *testing.T) {
		s, err := NextSuffix("1500-add-auth", []string{"a", "b", "d"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if s != "c" {
			t.Errorf("suffix = %q, want %q", s, "c")
		}
	})

	t.Run("burned letters stay burned", func(t *testing.T) {
		// "a" was granted to a sub-stream that has since been removed;
		// the next grant must still skip it.
		s, err := NextSuffix("1500-add-auth", []string{"a"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if s != "b" {
			t.Errorf("suffix = %q, want %q", s, "b")
		}
	})

	t.Run("twenty-seventh sub-stream fails", func(t *testing.T) {
		used := make([]string, 0, 26)
		for c := byte('a'); c <= 'z'; c++ {
			used = append(used, string(c))
		}
		_, err := NextSuffix("1500-add-auth", used)
		if err == nil {
			t.Fatal("expected capacity error, got nil")
		}
		var capErr *CapacityError
		if !errors.As(err, &capErr) {
			t.Fatalf("expected *CapacityError, got %T", err)
		}
		if capErr.Limit != MaxSubStreams {
			t.Errorf("Limit = %d, want %d", capErr.Limit, MaxSubStreams)
		}
	})
}

func TestBranchName(t *testing.T) {
	if got := BranchName("1500-add-auth"); got != "stream/1500-add-auth" {
		t.Errorf("BranchName = %q, want %q", got, "stream/1500-add-auth")
	}
}
