// Input validation for student messages.
//
// Validation is pure and bounded: no allocation proportional to repeated
// content, no network, no clock.

package tutor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxMessageLen is the per-message length cap in characters.
const maxMessageLen = 2000

// repeatRunLimit rejects runs of 11 or more identical characters.
const repeatRunLimit = 11

// ValidationReason classifies why a message was rejected.
type ValidationReason int

const (
	// ReasonEmptyInput: the message is empty or whitespace-only.
	ReasonEmptyInput ValidationReason = iota
	// ReasonTooLong: the message exceeds maxMessageLen characters.
	ReasonTooLong
	// ReasonSpamPattern: the message matches a spam/abuse pattern.
	ReasonSpamPattern
)

// ValidationError rejects a student message before it reaches the model.
type ValidationError struct {
	Reason ValidationReason
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonEmptyInput:
		return "Message cannot be empty"
	case ReasonTooLong:
		return "Message is too long (max 2000 characters)"
	case ReasonSpamPattern:
		return "Message contains invalid patterns"
	default:
		return "Message is invalid"
	}
}

// symbolOnly matches messages of 20 or more characters containing no
// letters, digits, or whitespace at all.
var symbolOnly = regexp.MustCompile(`^[^a-zA-Z0-9\s]{20,}$`)

// ValidateMessage returns nil if a student message may be submitted, or a
// *ValidationError describing the first failed check.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return &ValidationError{Reason: ReasonEmptyInput}
	}
	if utf8.RuneCountInString(message) > maxMessageLen {
		return &ValidationError{Reason: ReasonTooLong}
	}
	if hasRepeatRun(message, repeatRunLimit) || symbolOnly.MatchString(message) {
		return &ValidationError{Reason: ReasonSpamPattern}
	}
	return nil
}

// hasRepeatRun reports whether s contains a run of limit or more identical
// characters. RE2 has no backreferences, so the run check is a scan.
func hasRepeatRun(s string, limit int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if run > 0 && r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= limit {
			return true
		}
	}
	return false
}
