// Package chat holds the order chat rules: message sanitization, the
// automatic messages emitted on order transitions, the grace period after an
// order is closed, and unread counting.
package chat

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxMessageLength caps human-authored messages, in runes.
const MaxMessageLength = 100

// Sanitize strips HTML markup, collapses whitespace and caps the result at
// MaxMessageLength runes.
func Sanitize(raw string) string {
	return truncate(StripTags(raw), MaxMessageLength)
}

// StripTags removes HTML markup and collapses whitespace without capping the
// length. Script and style bodies are dropped entirely.
func StripTags(raw string) string {
	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	skip := 0
loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			break loop
		case html.StartTagToken:
			if isRawText(z) {
				skip++
			}
		case html.EndTagToken:
			if isRawText(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}

	// Entities such as &lt; decode back into angle brackets; drop them so
	// the stored text can never be re-read as markup.
	text := strings.NewReplacer("<", "", ">", "").Replace(b.String())
	return strings.Join(strings.Fields(text), " ")
}

func isRawText(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
