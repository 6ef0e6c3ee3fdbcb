package lyric

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// ipaReadingField is the katakana reading column of IPA dictionary features.
const ipaReadingField = 7

// kagomeConverter renders furigana as <ruby> markup using the kagome
// morphological analyzer.
type kagomeConverter struct {
	t *tokenizer.Tokenizer
}

// LoadKagome loads the IPA dictionary and builds the tokenizer. Loading takes
// a noticeable moment, so callers run it through Annotator.Start.
func LoadKagome(ctx context.Context) (Converter, error) {
	type result struct {
		t   *tokenizer.Tokenizer
		err error
	}
	ch := make(chan result, 1)
	go func() {
		t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
		ch <- result{t: t, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("create tokenizer: %w", r.err)
		}
		return &kagomeConverter{t: r.t}, nil
	}
}

// Convert annotates every token containing kanji with its hiragana reading.
// Text between tokens is copied through untouched.
func (k *kagomeConverter) Convert(text string) (string, error) {
	var b strings.Builder
	rest := text
	for _, tok := range k.t.Tokenize(text) {
		if tok.Surface == "" {
			continue
		}
		idx := strings.Index(rest, tok.Surface)
		if idx < 0 {
			continue
		}
		b.WriteString(rest[:idx])
		rest = rest[idx+len(tok.Surface):]

		reading := ""
		if f := tok.Features(); len(f) > ipaReadingField && f[ipaReadingField] != "*" {
			reading = f[ipaReadingField]
		}
		b.WriteString(Ruby(tok.Surface, reading))
	}
	b.WriteString(rest)
	return b.String(), nil
}

// Ruby wraps the kanji of surface with their reading. Kana in surface
// (okurigana and kana between kanji) stays outside the markup. Surfaces
// without kanji, or without a usable reading, come back unchanged.
func Ruby(surface, reading string) string {
	if reading == "" || !ContainsHan(surface) {
		return surface
	}

	s := []rune(surface)
	r := []rune(ToHiragana(reading))

	head := 0
	for head < len(s) && head < len(r) && toHiraganaRune(s[head]) == r[head] {
		head++
	}
	tail := 0
	for tail < len(s)-head && tail < len(r)-head &&
		toHiraganaRune(s[len(s)-1-tail]) == r[len(r)-1-tail] {
		tail++
	}

	core := s[head : len(s)-tail]
	coreReading := r[head : len(r)-tail]
	if len(core) == 0 || len(coreReading) == 0 {
		return surface
	}

	return string(s[:head]) + rubyRuns(core, coreReading) + string(s[len(s)-tail:])
}

// rubyRuns gives each kanji run of core its own <ruby>, leaving kana between
// kanji runs outside the markup (取り出 -> 取|り|出). When the kana cannot be
// located in reading the whole core is wrapped instead.
func rubyRuns(core, reading []rune) string {
	whole := "<ruby>" + string(core) + "<rt>" + string(reading) + "</rt></ruby>"

	var b strings.Builder
	pos := 0
	var pending []rune // kanji run still waiting for its reading
	for _, run := range splitHan(core) {
		if unicode.Is(unicode.Han, run[0]) {
			pending = run
			continue
		}
		kana := []rune(ToHiragana(string(run)))
		from := pos
		if pending != nil {
			from++ // 汉字至少对应一个假名
		}
		idx := indexRunes(reading, kana, from)
		if idx < 0 || (pending == nil && idx != pos) {
			return whole
		}
		if pending != nil {
			writeRuby(&b, pending, reading[pos:idx])
			pending = nil
		}
		b.WriteString(string(run))
		pos = idx + len(kana)
	}
	if pending != nil {
		if pos >= len(reading) {
			return whole
		}
		writeRuby(&b, pending, reading[pos:])
	} else if pos != len(reading) {
		return whole
	}
	return b.String()
}

func writeRuby(b *strings.Builder, base, rt []rune) {
	b.WriteString("<ruby>")
	b.WriteString(string(base))
	b.WriteString("<rt>")
	b.WriteString(string(rt))
	b.WriteString("</rt></ruby>")
}

// splitHan cuts s into alternating runs of kanji and non-kanji.
func splitHan(s []rune) [][]rune {
	var runs [][]rune
	start := 0
	for i := 1; i <= len(s); i++ {
		if i == len(s) || unicode.Is(unicode.Han, s[i]) != unicode.Is(unicode.Han, s[start]) {
			runs = append(runs, s[start:i])
			start = i
		}
	}
	return runs
}

func indexRunes(hay, needle []rune, from int) int {
	for i := from; i+len(needle) <= len(hay); i++ {
		match := true
		for j, c := range needle {
			if hay[i+j] != c {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// ContainsHan reports whether s has at least one kanji.
func ContainsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// ToHiragana maps katakana to hiragana and leaves everything else alone.
func ToHiragana(s string) string {
	return strings.Map(toHiraganaRune, s)
}

func toHiraganaRune(r rune) rune {
	if r >= 'ァ' && r <= 'ヶ' {
		return r - 0x60
	}
	return r
}
