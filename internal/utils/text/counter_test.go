package text_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"catchup-relay/internal/utils/text"
)

func TestCountRunes(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int
	}{
		{"ascii", "hello", 5},
		{"ascii with spaces", "hello world", 11},
		{"punctuation", "Hello, World!", 13},

		{"hiragana", "こんにちは", 5},
		{"kanji", "日本語", 3},
		{"katakana", "カタカナ", 4},
		{"japanese punctuation", "こんにちは。世界！", 9},
		{"mixed english japanese", "hello世界", 7},
		{"mixed with digits", "test123テスト", 10},

		{"single emoji", "Hello👋", 6},
		{"emoji run", "🚀✨🤖💡", 4},
		// 国旗は地域指示子2つの組
		{"flag emoji", "🇯🇵", 2},

		{"empty", "", 0},
		{"whitespace", " \t\n ", 4},
		{"zero-width space", "hello​world", 11},
		{"symbols", "©®™€", 4},

		// 合成済みの é は1ルーン、結合文字だと e + U+0301 で2ルーン
		{"precomposed accent", "café", 4},
		{"combining accent", "café", 5},

		{"chinese", "你好世界", 4},
		{"korean", "안녕하세요", 5},
		{"arabic", "مرحبا", 5},
		{"cyrillic", "Привет", 6},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := text.CountRunes(tc.input); got != tc.want {
				t.Errorf("CountRunes(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

// CountRunes is the character count the translator char limit and the
// notifier truncation both rely on, so it must agree with len([]rune(s)).
func TestCountRunes_MatchesBuiltin(t *testing.T) {
	inputs := []string{
		"hello",
		"こんにちは世界 Hello World 🚀",
		"人工知能技術の発展により、私たちの生活は大きく変化しています。",
		"Machine LearningとDeep Learningの違い",
		"   ",
		"",
	}

	for _, in := range inputs {
		if got, want := text.CountRunes(in), len([]rune(in)); got != want {
			t.Errorf("CountRunes(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		limit  int
		suffix string
		want   string
	}{
		{"under limit", "short", 100, "...", "short"},
		{"over limit", "hello world", 5, "...", "hello..."},
		{"exactly at limit", "hello", 5, "...", "hello"},
		{"japanese keeps runes whole", "こんにちは世界", 5, "…", "こんにちは…"},
		{"emoji keeps runes whole", "🚀✨🤖💡", 2, "...", "🚀✨..."},
		{"empty suffix", "hello world", 5, "", "hello"},
		{"zero limit disables truncation", "hello", 0, "...", "hello"},
		{"empty input", "", 5, "...", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := text.TruncateRunes(tc.input, tc.limit, tc.suffix)
			if got != tc.want {
				t.Errorf("TruncateRunes(%q, %d, %q) = %q, want %q",
					tc.input, tc.limit, tc.suffix, got, tc.want)
			}
		})
	}
}

// Byte-slicing truncation can cut a UTF-8 sequence in half; TruncateRunes
// must never produce invalid UTF-8 at any limit.
func TestTruncateRunes_NeverSplitsRunes(t *testing.T) {
	input := "人工知能技術の発展により、私たちの生活は大きく変化しています。"

	for limit := 1; limit < text.CountRunes(input); limit++ {
		result := text.TruncateRunes(input, limit, "")
		if !utf8.ValidString(result) {
			t.Fatalf("limit %d: result is not valid UTF-8", limit)
		}
		if got := text.CountRunes(result); got != limit {
			t.Errorf("limit %d: got %d runes", limit, got)
		}
	}
}

func BenchmarkCountRunes(b *testing.B) {
	inputs := []struct {
		name string
		s    string
	}{
		{"ascii", "hello world"},
		{"japanese", "こんにちは"},
		{"mixed", "AIの発展により、新しい可能性が広がっています。Machine Learning and Deep Learning are transforming technology."},
		{"long", strings.Repeat("機械学習アルゴリズムは大量のデータから複雑なパターンを学習する。", 8)},
	}

	for _, in := range inputs {
		b.Run(in.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				text.CountRunes(in.s)
			}
		})
	}
}
