// Package language tags and detects the language of queries and chunks.
package language

import (
	"fmt"
	"unicode"
)

// Language is a supported content language.
type Language string

// Supported languages.
const (
	Arabic Language = "ar"
	French Language = "fr"
)

// Default is used when a text carries no letters at all.
const Default = French

// Parse validates a language tag. An empty tag is returned as-is.
func Parse(s string) (Language, error) {
	switch Language(s) {
	case "", Arabic, French:
		return Language(s), nil
	default:
		return "", fmt.Errorf("unsupported language %q", s)
	}
}

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool {
	return l == Arabic || l == French
}

// Direction returns the text direction for rendering: rtl or ltr.
func (l Language) Direction() string {
	if l == Arabic {
		return "rtl"
	}
	return "ltr"
}

// Detect counts Arabic-script letters against Latin letters and returns the
// majority. Ties and letterless text resolve to French.
func Detect(text string) Language {
	var arabic, latin int
	for _, r := range text {
		switch {
		case isArabic(r):
			arabic++
		case isLatin(r):
			latin++
		}
	}
	if arabic > latin {
		return Arabic
	}
	return Default
}

// Arabic block U+0600..U+06FF, digits and punctuation of the block included.
func isArabic(r rune) bool {
	return r >= 0x0600 && r <= 0x06FF
}

// ASCII letters plus Latin-1 letters (À..ÿ).
func isLatin(r rune) bool {
	if r < unicode.MaxASCII {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}
	return r >= 0x00C0 && r <= 0x00FF
}
