// Package fixtures provides reusable test data generators for the relay's
// tests. It keeps canonical feed entries, parked drafts, delivery records,
// and entry body text in one place so pipeline, notifier, and repository
// tests share consistent content.
package fixtures

import (
	"strings"

	"catchup-relay/internal/utils/text"
)

// BodyOptions configures the generated entry body.
type BodyOptions struct {
	// Length is the approximate rune count (target length, ±10% variance allowed)
	Length int

	// Language selects the content language ("japanese" or "english")
	Language string

	// IncludeEmoji mixes emoji sentences into the body
	IncludeEmoji bool
}

// GenerateBody generates feed entry body text based on the provided options.
// The content reads like release-note prose, long enough runs of which are
// what the truncation and enhancement paths see in production.
//
// Example:
//
//	body := GenerateBody(BodyOptions{
//	    Length:   2000,
//	    Language: "japanese",
//	})
func GenerateBody(opts BodyOptions) string {
	if opts.Language == "english" {
		return buildBody(englishSentences, englishEmojiSentences, opts.Length, opts.IncludeEmoji)
	}
	return buildBody(japaneseSentences, japaneseEmojiSentences, opts.Length, opts.IncludeEmoji)
}

// GenerateShortBody generates a short Japanese body (~500 runes).
// Useful where an entry needs real content below the enhancement threshold.
func GenerateShortBody() string {
	return GenerateBody(BodyOptions{Length: 500, Language: "japanese"})
}

// GenerateLongBody generates a long Japanese body (~10000 runes).
// The result exceeds every channel's payload limit, so it drives the
// rune-safe truncation paths in the notifiers.
func GenerateLongBody() string {
	return GenerateBody(BodyOptions{Length: 10000, Language: "japanese"})
}

// GenerateBodyWithEmoji generates a Japanese body (~2000 runes) that includes
// emoji characters. Useful for Unicode counting and truncation tests.
func GenerateBodyWithEmoji() string {
	return GenerateBody(BodyOptions{Length: 2000, Language: "japanese", IncludeEmoji: true})
}

var japaneseSentences = []string{
	"新しいバージョンではビルド時間が大幅に短縮され、開発体験が向上しました。",
	"今回のリリースには複数のセキュリティ修正が含まれるため、早めの更新を推奨します。",
	"ガベージコレクタの改善により、レイテンシのスパイクが目に見えて減少しています。",
	"標準ライブラリに追加された新しいパッケージは、構造化ログの出力を簡素化します。",
	"後方互換性は維持されており、既存のコードは変更なしで動作します。",
	"ベンチマークの結果、メモリ使用量は前バージョン比でおよそ2割削減されました。",
	"非推奨となったAPIは次のメジャーリリースで削除される予定です。",
	"コンテナイメージの縮小により、各環境でのデプロイ時間が短くなりました。",
	"新しいランタイム診断機能で、本番環境のプロファイリングが容易になります。",
	"ドキュメントは全面的に書き直され、移行ガイドも追加されています。",
	"実験的な機能は環境変数で有効化でき、フィードバックを募集しています。",
	"依存関係の脆弱性スキャンがリリースパイプラインに統合されました。",
	"クロスコンパイルの対象に新しいアーキテクチャが追加されています。",
	"テストフレームワークの改善により、並列実行時の安定性が向上しました。",
	"今回の変更点の多くはコミュニティからの貢献によるものです。",
}

var japaneseEmojiSentences = []string{
	"待望の新機能がついにリリースされました 🎉🚀",
	"パフォーマンスが全体的に改善されています ⚡📈",
	"セキュリティアップデートをお見逃しなく 🔒✅",
	"開発チームからの最新情報です 📣💬",
	"次のバージョンもお楽しみに 🛠️✨",
}

var englishSentences = []string{
	"The latest release cuts build times significantly and improves the developer experience.",
	"This update ships several security fixes, so upgrading promptly is recommended.",
	"Garbage collector improvements noticeably reduce latency spikes under load.",
	"A new standard library package simplifies structured log output.",
	"Backward compatibility is preserved, and existing code runs unchanged.",
	"Benchmarks show memory usage dropping by roughly twenty percent.",
	"Deprecated interfaces are scheduled for removal in the next major release.",
	"Smaller container images shorten deployment times across environments.",
	"New runtime diagnostics make production profiling considerably easier.",
	"The documentation has been rewritten and a migration guide is now available.",
	"Experimental features can be enabled with an environment variable.",
	"Dependency vulnerability scanning is now part of the release pipeline.",
	"Cross-compilation support gained additional target architectures.",
	"Test framework improvements increase stability for parallel runs.",
	"Community contributions make up a large share of this changelog.",
}

var englishEmojiSentences = []string{
	"The long awaited feature has finally landed 🎉🚀",
	"Performance gains across the board ⚡📈",
	"Do not miss this security update 🔒✅",
	"Fresh news from the maintainers 📣💬",
	"Stay tuned for the next release 🛠️✨",
}

// buildBody joins sentences until the target length is reached. Length is
// counted in runes and allowed to land within ±10% of the target.
func buildBody(base, emoji []string, targetLength int, includeEmoji bool) string {
	interval := targetLength / 5
	if interval < 1 {
		interval = 1
	}

	var b strings.Builder
	length := 0
	next := 0
	emojiNext := 0

	for {
		var sentence string
		if includeEmoji && emojiNext < len(emoji) && length%interval < 100 {
			sentence = emoji[emojiNext]
			emojiNext++
		} else {
			sentence = base[next%len(base)]
			next++
		}

		add := text.CountRunes(sentence)
		if length > 0 {
			add++ // 区切りの空白
		}

		// 下限(90%)に達した後は、上限(110%)を超える文は足さない
		if length >= int(float64(targetLength)*0.9) && length+add > int(float64(targetLength)*1.1) {
			break
		}

		if length > 0 {
			b.WriteString(" ")
		}
		b.WriteString(sentence)
		length += add

		if length >= targetLength {
			break
		}
	}

	return b.String()
}
