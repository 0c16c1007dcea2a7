package sources

import (
	"encoding/json"
	"testing"
)

func TestRemoveDuplicateTitles(t *testing.T) {
	in := []Article{
		{Title: "Hope Rises", URL: "a"},
		{Title: "  hope rises ", URL: "b"},
		{Title: "Other", URL: "c"},
	}
	out := removeDuplicateTitles(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(out))
	}
	if out[0].URL != "a" {
		t.Fatalf("expected first occurrence kept, got %s", out[0].URL)
	}
}

func TestKeepDropsIncomplete(t *testing.T) {
	var list []Article
	list = keep(list, Article{Title: "  ", URL: "https://x"})
	list = keep(list, Article{Title: "t", URL: ""})
	list = keep(list, Article{Title: " t ", URL: " https://y "})
	if len(list) != 1 || list[0].Title != "t" || list[0].URL != "https://y" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2026-03-01T08:00:00Z", "2026-03-01T08:00:00Z"},
		{"2026-03-01T10:00:00+02:00", "2026-03-01T08:00:00Z"},
		{"2026-03-01 09:30:00", "2026-03-01T09:30:00Z"},
		{"Sun, 01 Mar 2026 10:00:00 +0000", "2026-03-01T10:00:00Z"},
		{"yesterday", "yesterday"},
	}
	for _, tt := range tests {
		if got := normalizeTime(tt.in); got != tt.want {
			t.Errorf("normalizeTime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClampPageSize(t *testing.T) {
	if clampPageSize(0, 10) != 1 || clampPageSize(50, 10) != 10 || clampPageSize(5, 10) != 5 {
		t.Fatal("unexpected clamp results")
	}
}

func TestStringList(t *testing.T) {
	cases := map[string][]string{
		`"Ann"`:               {"Ann"},
		`["Ann", null, " "]`: {"Ann"},
		`null`:                nil,
		`""`:                  nil,
	}
	for in, want := range cases {
		var l stringList
		if err := json.Unmarshal([]byte(in), &l); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if len(l) != len(want) || (len(want) > 0 && l[0] != want[0]) {
			t.Fatalf("%s: expected %v, got %v", in, want, l)
		}
	}
	var l stringList
	if err := json.Unmarshal([]byte(`{"name": "Ann"}`), &l); err == nil {
		t.Fatal("expected an object to be rejected")
	}
}
