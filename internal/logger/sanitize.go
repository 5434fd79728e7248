package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxUserIDLength is the maximum length for user IDs in logs.
	// Alexa-style user identifiers run to ~250 characters.
	MaxUserIDLength = 256
	// MaxQuestionLength is the maximum length for question text in logs.
	// Spoken questions are short; anything longer is truncated.
	MaxQuestionLength = 500
	// MaxDebugContentLength is the maximum length for debug content (prompts/replies)
	MaxDebugContentLength = 10000
)

// SanitizeString sanitizes a string for safe logging: validates UTF-8,
// strips control characters, and truncates to maxLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxQuestionLength
	}

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	s = builder.String()

	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}

	return s
}

// SanitizeUserID sanitizes a user identifier for safe logging.
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeQuestion sanitizes spoken question text for safe logging.
func SanitizeQuestion(question string) string {
	return SanitizeString(question, MaxQuestionLength)
}
