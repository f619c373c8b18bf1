package playerdomain

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Column limits, in characters.
const (
	MaxHandleLength = 64
	MaxChatIDLength = 64
	MaxNickLength   = 64
	MaxEmailLength  = 255
)

func tooLong(s string, limit int) bool {
	return utf8.RuneCountInString(s) > limit
}

// validateNick checks a nick and its folded form, which can be longer ("ß" folds to "ss").
func validateNick(nick string) (field, reason string) {
	if tooLong(nick, MaxNickLength) || tooLong(FoldNick(nick), MaxNickLength) {
		return "nick", "is too long"
	}
	return "", ""
}

func validateEmail(email string) (field, reason string) {
	if email == "" {
		return "", ""
	}
	if tooLong(email, MaxEmailLength) {
		return "email", "is too long"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "email", "is not a valid address"
	}
	return "", ""
}

// FoldNick returns the case-folded form used to compare in-game nicks.
func FoldNick(nick string) string {
	return folder.String(strings.TrimSpace(nick))
}

// SameNick reports whether two nicks match case-insensitively.
func SameNick(a, b string) bool {
	return FoldNick(a) == FoldNick(b)
}

// Registration is the input for creating a player.
type Registration struct {
	Handle string
	ChatID string
	Nick   string
	Email  string
}

// Normalize trims every field.
func (r Registration) Normalize() Registration {
	return Registration{
		Handle: strings.TrimSpace(r.Handle),
		ChatID: strings.TrimSpace(r.ChatID),
		Nick:   strings.TrimSpace(r.Nick),
		Email:  strings.TrimSpace(r.Email),
	}
}

// Validate returns the first missing or malformed field name and a reason, or "" when valid.
func (r Registration) Validate() (field, reason string) {
	switch {
	case r.Handle == "":
		return "handle", "is required"
	case r.ChatID == "":
		return "chat_id", "is required"
	case r.Nick == "":
		return "nick", "is required"
	case tooLong(r.Handle, MaxHandleLength):
		return "handle", "is too long"
	case tooLong(r.ChatID, MaxChatIDLength):
		return "chat_id", "is too long"
	}
	if field, reason := validateNick(r.Nick); field != "" {
		return field, reason
	}
	return validateEmail(r.Email)
}

// ProfileUpdate is the editable part of a player.
type ProfileUpdate struct {
	Nick  string
	Email string
	Bio   string
}

// MaxBioLength bounds the free-text bio.
const MaxBioLength = 500

// Validate mirrors Registration.Validate for profile edits.
func (u ProfileUpdate) Validate() (field, reason string) {
	nick := strings.TrimSpace(u.Nick)
	if nick == "" {
		return "nick", "is required"
	}
	if field, reason := validateNick(nick); field != "" {
		return field, reason
	}
	if field, reason := validateEmail(strings.TrimSpace(u.Email)); field != "" {
		return field, reason
	}
	if len([]rune(u.Bio)) > MaxBioLength {
		return "bio", "is too long"
	}
	return "", ""
}
