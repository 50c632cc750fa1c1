package filter

import (
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
)

// Filter narrows a search to a legal domain and/or a content language.
// The zero value applies no filter.
type Filter struct {
	domain   legal.Tag
	language language.Language
}

// New creates a filter. Empty values leave the corresponding field unfiltered.
func New(domain legal.Tag, lang language.Language) Filter {
	return Filter{domain: domain, language: lang}
}

// ByDomain creates a filter on domain only. Language stays unfiltered so
// queries in one language can match chunks written in another.
func ByDomain(domain legal.Tag) Filter {
	return Filter{domain: domain}
}

// Domain returns the domain filter value.
func (f Filter) Domain() legal.Tag { return f.domain }

// Language returns the language filter value.
func (f Filter) Language() language.Language { return f.language }

// HasDomain reports whether a domain filter is set.
func (f Filter) HasDomain() bool { return f.domain != legal.Undetermined }

// HasLanguage reports whether a language filter is set.
func (f Filter) HasLanguage() bool { return f.language != "" }

// IsEmpty reports whether no filter is applied.
func (f Filter) IsEmpty() bool { return !f.HasDomain() && !f.HasLanguage() }

// Tags returns the filter as field -> value pairs for tag-indexed backends.
func (f Filter) Tags() map[string]string {
	if f.IsEmpty() {
		return nil
	}
	tags := make(map[string]string, 2)
	if f.HasDomain() {
		tags["domain"] = string(f.domain)
	}
	if f.HasLanguage() {
		tags["language"] = string(f.language)
	}
	return tags
}
