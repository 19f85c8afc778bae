// Package element classifies caller-defined element identifiers such as
// "email_field" or "submit_button" into the coarse kinds the detectors produce.
package element

import "strings"

// Kind is the coarse shape class of a clickable element
type Kind string

const (
	// KindButton is a filled, button-shaped control
	KindButton Kind = "button"
	// KindInput is a bright rectangular text input
	KindInput Kind = "input"
	// KindLink is coloured, underlined text
	KindLink Kind = "link"
	// KindUnknown is returned when the identifier names nothing we detect
	KindUnknown Kind = "unknown"
)

var (
	inputWords      = []string{"field", "input", "email", "password", "username", "search", "textbox", "phone"}
	linkWords       = []string{"link", "forgot"}
	buttonWords     = []string{"button", "btn", "submit", "login", "log_in", "sign_in", "signin", "continue", "next", "post", "upload", "accept"}
	submissionWords = []string{"submit", "login", "log_in", "sign_in", "signin", "continue", "next", "post", "confirm"}
)

func normalize(elementType string) string {
	s := strings.ToLower(strings.TrimSpace(elementType))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// KindOf maps an element identifier to the kind of candidate that can satisfy it.
// Links are checked first so "forgot_password_link" is not mistaken for a field.
func KindOf(elementType string) Kind {
	s := normalize(elementType)
	switch {
	case s == "":
		return KindUnknown
	case containsAny(s, linkWords):
		return KindLink
	case containsAny(s, inputWords) && !strings.Contains(s, "button"):
		return KindInput
	case containsAny(s, buttonWords):
		return KindButton
	default:
		return KindUnknown
	}
}

// IsField reports whether the identifier names a text input
func IsField(elementType string) bool {
	return KindOf(elementType) == KindInput
}

// IsSubmission reports whether clicking the element submits a form
func IsSubmission(elementType string) bool {
	s := normalize(elementType)
	return KindOf(s) == KindButton && containsAny(s, submissionWords)
}
