// Package text provides utilities for text processing and analysis.
// This package includes reusable functions for character counting and truncation
// that are shared by the AI translation providers and the notification channels.
package text

// CountRunes counts the number of Unicode characters (runes) in the given text.
// This function correctly handles multi-byte characters including Japanese, Chinese,
// emoji, and other Unicode characters by counting runes instead of bytes.
//
// Examples:
//
//	CountRunes("hello")          // returns 5 (ASCII text)
//	CountRunes("こんにちは")       // returns 5 (Japanese text)
//	CountRunes("hello世界")       // returns 7 (mixed text)
//	CountRunes("")               // returns 0 (empty string)
func CountRunes(text string) int {
	return len([]rune(text))
}

// TruncateRunes cuts text to at most limit runes, appending suffix when a cut
// happened. Counting runes instead of bytes keeps multi-byte characters intact;
// a byte slice could split a UTF-8 sequence in the middle.
//
// A limit <= 0 returns the text unchanged.
//
// Examples:
//
//	TruncateRunes("hello world", 5, "...")  // returns "hello..."
//	TruncateRunes("こんにちは世界", 5, "…")    // returns "こんにちは…"
//	TruncateRunes("short", 100, "...")      // returns "short"
func TruncateRunes(text string, limit int, suffix string) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + suffix
}
