package respond

import (
	"regexp"
)

var (
	// APIキーのマスク
	// 注意: sk-ant- が sk- より先（具体的なパターンを先に適用する）
	anthropicKeyPattern = regexp.MustCompile(`sk-ant-[a-zA-Z0-9-_]+`)
	openaiKeyPattern    = regexp.MustCompile(`sk-[a-zA-Z0-9]{10,}`)

	// Webhook URLはパス末尾のセグメントがシークレット
	discordWebhookPattern = regexp.MustCompile(`(discord(?:app)?\.com/api/webhooks/\d+)/[A-Za-z0-9._-]+`)
	slackWebhookPattern   = regexp.MustCompile(`(hooks\.slack\.com/services)/[A-Za-z0-9/]+`)

	bearerTokenPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)

	// DSN内のパスワード
	dbPasswordPattern = regexp.MustCompile(`://([^:]+):([^@]+)@`)
)

// SanitizeError returns err's message with credentials masked: provider API
// keys, webhook secrets, bearer tokens, and DSN passwords. Delivery errors
// quote the target URL, so webhook masks keep the channel identifiable
// while dropping the secret path segment.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	msg = anthropicKeyPattern.ReplaceAllString(msg, "sk-ant-****")
	msg = openaiKeyPattern.ReplaceAllString(msg, "sk-****")
	msg = discordWebhookPattern.ReplaceAllString(msg, "$1/****")
	msg = slackWebhookPattern.ReplaceAllString(msg, "$1/****")
	msg = bearerTokenPattern.ReplaceAllString(msg, "Bearer ****")
	msg = dbPasswordPattern.ReplaceAllString(msg, "://$1:****@")

	return msg
}
