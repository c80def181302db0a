package core

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MaxNotesLength caps the journal notes of a trip, in bytes after sanitizing.
const MaxNotesLength = 20000

// notesPolicy keeps simple formatting in journal notes and drops everything else,
// including links, images, scripts, styles and on* attributes.
func notesPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em", "b", "i", "u",
		"h1", "h2", "h3",
	)
	return p
}

// sanitizeNotes cleans user supplied notes before they are stored.
func sanitizeNotes(p *bluemonday.Policy, notes string) string {
	return strings.TrimSpace(p.Sanitize(notes))
}

var chatPolicy = bluemonday.StrictPolicy()

// sanitizeChatText strips all markup from a chat message. Entities escaped by the policy are
// decoded again so plain punctuation is stored as typed.
func sanitizeChatText(text string) string {
	return strings.TrimSpace(html.UnescapeString(chatPolicy.Sanitize(text)))
}
