package lyric

import (
	"errors"
	"testing"
)

func TestParse_Basic(t *testing.T) {
	s := Parse("[00:01.00]A\n[00:03.50]B\n[01:05.25]C")

	want := []Cue{{1.0, "A"}, {3.5, "B"}, {65.25, "C"}}
	got := s.Cues()
	if len(got) != len(want) {
		t.Fatalf("expected %d cues, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cue %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestParse_SegmentsWithoutNewlines(t *testing.T) {
	s := Parse("[00:01.00]first[00:02.00]second")
	if s.Len() != 2 {
		t.Fatalf("expected 2 cues, got %d", s.Len())
	}
	if s.Text(0) != "first" || s.Text(1) != "second" {
		t.Errorf("unexpected texts %q %q", s.Text(0), s.Text(1))
	}
}

func TestParse_EmptyText(t *testing.T) {
	s := Parse("[00:01.00]\n[00:02.00]x")
	if s.Len() != 2 || s.Text(0) != "" {
		t.Errorf("expected blank first cue, got %+v", s.Cues())
	}
}

func TestParse_EmptyBlob(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n"} {
		if n := Parse(raw).Len(); n != 0 {
			t.Errorf("Parse(%q) expected empty store, got %d cues", raw, n)
		}
	}
}

func TestParse_MalformedYieldsEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unclosed bracket", "[00:01.00A\n[00:02.00]B"},
		{"single digit minute", "[0:01.00]A"},
		{"missing hundredths", "[00:01]A"},
		{"leading text", "title\n[00:01.00]A"},
		{"no tags", "just words"},
		{"bad tail", "[00:01.00]A\n[xx:02.00]B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if n := Parse(tt.raw).Len(); n != 0 {
				t.Errorf("expected empty store, got %d cues", n)
			}
			if _, err := ParseStrict(tt.raw); !errors.Is(err, ErrMalformedLyric) {
				t.Errorf("expected ErrMalformedLyric, got %v", err)
			}
		})
	}
}

func TestStore_SetTextKeepsOrder(t *testing.T) {
	s := NewStore([]Cue{{1, "a"}, {2, "b"}})
	s.SetText(1, "B")

	if s.Len() != 2 {
		t.Fatalf("expected length 2, got %d", s.Len())
	}
	if s.At(0) != (Cue{1, "a"}) || s.At(1) != (Cue{2, "B"}) {
		t.Errorf("unexpected cues %+v", s.Cues())
	}
}

func TestStore_NilIsEmpty(t *testing.T) {
	var s *Store
	if s.Len() != 0 || s.Cues() != nil {
		t.Error("nil store should behave as empty")
	}
}
