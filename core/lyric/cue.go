package lyric

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"SyncFM/logger"
)

// ErrMalformedLyric 歌词格式错误，整段歌词被丢弃
var ErrMalformedLyric = errors.New("malformed lyric")

// segmentPattern matches one [mm:ss.hh]text cue; text may not contain '['.
var segmentPattern = regexp.MustCompile(`^\[([0-9]{2}):([0-9]{2})\.([0-9]{2})\]([^\[]*)$`)

// Cue is a single timestamped lyric line.
type Cue struct {
	Time float64 // seconds from track start
	Text string
}

// Store is the ordered cue sequence of one track. Its length and order are
// fixed at construction; only the text at an index may be rewritten. Readers
// holding an index therefore never see a shifted or removed cue.
type Store struct {
	mu   sync.RWMutex
	cues []Cue
}

// NewStore builds a store from cues that are already sorted by time.
func NewStore(cues []Cue) *Store {
	cp := make([]Cue, len(cues))
	copy(cp, cues)
	return &Store{cues: cp}
}

// Len returns the number of cues.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.cues)
}

// At returns the cue at index i.
func (s *Store) At(i int) Cue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cues[i]
}

// Time returns the timestamp of cue i. Timestamps never change, so no lock
// is taken.
func (s *Store) Time(i int) float64 {
	return s.cues[i].Time
}

// Text returns the current text of cue i.
func (s *Store) Text(i int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cues[i].Text
}

// SetText replaces the text of cue i in place.
func (s *Store) SetText(i int, text string) {
	s.mu.Lock()
	s.cues[i].Text = text
	s.mu.Unlock()
}

// Cues returns a snapshot copy of the sequence.
func (s *Store) Cues() []Cue {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]Cue, len(s.cues))
	copy(cp, s.cues)
	return cp
}

// Parse builds the cue store for a raw lyric blob. An empty blob gives an
// empty store, and so does a malformed one: a single bad segment discards the
// whole blob rather than showing lyrics with silent gaps.
func Parse(raw string) *Store {
	cues, err := ParseStrict(raw)
	if err != nil {
		logger.Debug("lyric blob rejected", logger.ErrorField(err))
		return NewStore(nil)
	}
	return &Store{cues: cues}
}

// ParseStrict is Parse with the failure reason exposed.
func ParseStrict(raw string) ([]Cue, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	start := strings.IndexByte(raw, '[')
	if start < 0 {
		return nil, fmt.Errorf("%w: no timestamp tag", ErrMalformedLyric)
	}
	if lead := strings.TrimSpace(raw[:start]); lead != "" {
		return nil, fmt.Errorf("%w: text before first tag %q", ErrMalformedLyric, lead)
	}

	var cues []Cue
	rest := raw[start:]
	for rest != "" {
		end := strings.IndexByte(rest[1:], '[')
		var seg string
		if end < 0 {
			seg, rest = rest, ""
		} else {
			seg, rest = rest[:end+1], rest[end+1:]
		}

		cue, err := parseSegment(seg)
		if err != nil {
			return nil, err
		}
		cues = append(cues, cue)
	}
	return cues, nil
}

func parseSegment(seg string) (Cue, error) {
	m := segmentPattern.FindStringSubmatch(seg)
	if m == nil {
		return Cue{}, fmt.Errorf("%w: bad segment %q", ErrMalformedLyric, strings.TrimSpace(seg))
	}
	minutes, _ := strconv.Atoi(m[1])
	seconds, _ := strconv.Atoi(m[2])
	hundredths, _ := strconv.Atoi(m[3])
	return Cue{
		Time: float64(minutes*60+seconds) + float64(hundredths)/100,
		Text: strings.TrimRight(m[4], " \t\r\n"),
	}, nil
}
