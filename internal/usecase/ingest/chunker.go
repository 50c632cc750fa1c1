package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkSize is the maximum chunk length in characters.
const DefaultMaxChunkSize = 500

var (
	sentenceSep = regexp.MustCompile(`[.。؟?!]+`)
	arArticle   = regexp.MustCompile(`(?:المادة|الفصل)\s*(\d+)`)
	frArticle   = regexp.MustCompile(`(?i)(?:Article|Chapitre)\s*(\d+)`)
)

// ChunkText splits text into sentences and packs them greedily into chunks of
// at most maxSize characters. A single sentence longer than maxSize becomes
// its own chunk. Sentence terminators are dropped.
func ChunkText(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}

	var chunks []string
	var current string
	for _, s := range sentenceSep.Split(text, -1) {
		sentence := strings.TrimSpace(s)
		if sentence == "" {
			continue
		}
		if utf8.RuneCountInString(current+" "+sentence) > maxSize {
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
			}
			current = sentence
			continue
		}
		if current != "" {
			current += " "
		}
		current += sentence
	}
	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// ExtractArticleNumber returns the first article or chapter number cited in
// text, Arabic markers first. Empty when there is none.
func ExtractArticleNumber(text string) string {
	if m := arArticle.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := frArticle.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
