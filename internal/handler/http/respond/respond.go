// Package respond renders the ops server's JSON responses. Error paths are
// split into Error, which echoes operator-facing messages, and SafeError,
// which hides internal failures behind a generic message after logging a
// credential-masked copy.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// Headers are already sent, all that is left is the log
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Error writes err's message in a JSON error envelope. Use only for errors
// composed for the caller; anything that may wrap driver or provider
// details goes through SafeError.
func Error(w http.ResponseWriter, code int, err error) {
	JSON(w, code, map[string]string{"error": err.Error()})
}

// safeFragments marks messages that may be echoed to the caller verbatim:
// validation vocabulary plus the relay's own not-found phrasing.
var safeFragments = []string{
	"required",
	"invalid",
	"not found",
	"unknown",
	"disabled",
	"already exists",
	"must be",
	"cannot be",
	"too long",
	"too short",
}

// SafeError writes err as a JSON error envelope, masking messages that are
// not known to be safe. Unsafe messages are replaced with "internal server
// error" and logged with credentials redacted.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	msg := err.Error()

	isSafe := false
	lowerMsg := strings.ToLower(msg)
	for _, safe := range safeFragments {
		if strings.Contains(lowerMsg, safe) {
			isSafe = true
			break
		}
	}

	// 500番台は本文の内容に関わらず内部エラー扱い
	if code >= 500 {
		isSafe = false
	}

	if isSafe {
		JSON(w, code, map[string]string{"error": msg})
		return
	}

	slog.Default().Error("internal server error",
		slog.String("status", http.StatusText(code)),
		slog.Int("code", code),
		slog.String("error", SanitizeError(err)))
	JSON(w, code, map[string]string{"error": "internal server error"})
}
