package lyric

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestRuby(t *testing.T) {
	tests := []struct {
		surface, reading, want string
	}{
		{"漢字", "カンジ", "<ruby>漢字<rt>かんじ</rt></ruby>"},
		{"食べる", "タベル", "<ruby>食<rt>た</rt></ruby>べる"},
		{"お茶", "オチャ", "お<ruby>茶<rt>ちゃ</rt></ruby>"},
		{"取り出す", "トリダス", "<ruby>取<rt>と</rt></ruby>り<ruby>出<rt>だ</rt></ruby>す"},
		{"取り出", "トリダ", "<ruby>取<rt>と</rt></ruby>り<ruby>出<rt>だ</rt></ruby>"},
		{"見上げ", "ミアゲ", "<ruby>見上<rt>みあ</rt></ruby>げ"},
		{"聞き間違い", "キキマチガイ", "<ruby>聞<rt>き</rt></ruby>き<ruby>間違<rt>まちが</rt></ruby>い"},
		{"明日の日", "アシタノヒ", "<ruby>明日<rt>あした</rt></ruby>の<ruby>日<rt>ひ</rt></ruby>"},
		{"日の出", "ヒデ", "<ruby>日の出<rt>ひで</rt></ruby>"},
		{"ひらがな", "ヒラガナ", "ひらがな"},
		{"hello", "", "hello"},
		{"空", "", "空"},
	}
	for _, tt := range tests {
		if got := Ruby(tt.surface, tt.reading); got != tt.want {
			t.Errorf("Ruby(%q, %q) = %q, want %q", tt.surface, tt.reading, got, tt.want)
		}
	}
}

func TestToHiragana(t *testing.T) {
	if got := ToHiragana("カタカナとABC"); got != "かたかなとABC" {
		t.Errorf("unexpected conversion %q", got)
	}
}

func TestContainsHan(t *testing.T) {
	if !ContainsHan("夜に駆ける") {
		t.Error("expected kanji to be detected")
	}
	if ContainsHan("よるにかける") {
		t.Error("hiragana only should not contain kanji")
	}
}

var rubyMarkupRE = regexp.MustCompile(`<rt>[^<]*</rt>|</?ruby>`)

func TestKagomeConvert(t *testing.T) {
	if testing.Short() {
		t.Skip("loading the IPA dictionary is slow")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	conv, err := LoadKagome(ctx)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}

	tests := []struct {
		line string
		want string
	}{
		{"取り出す", "<ruby>取<rt>と</rt></ruby>り<ruby>出<rt>だ</rt></ruby>す"},
		{"空を見上げて", "<ruby>空<rt>そら</rt></ruby>を"},
		{"ひらがなだけ", "ひらがなだけ"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := conv.Convert(tt.line)
			if err != nil {
				t.Fatalf("convert: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Convert(%q) = %q, want it to contain %q", tt.line, got, tt.want)
			}
			if plain := rubyMarkupRE.ReplaceAllString(got, ""); plain != tt.line {
				t.Errorf("stripping the markup gave %q, want %q", plain, tt.line)
			}
		})
	}
}
