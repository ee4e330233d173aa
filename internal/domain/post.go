package domain

import (
	"strings"
	"time"
)

// Post is a unit of content fetched from an external page feed.
// Different post types carry text in different fields: regular posts use
// Message, shares use Story, photo and link posts may only have a
// Description, Caption, or Name.
type Post struct {
	ID     string `json:"id"`
	PageID string `json:"pageId,omitempty"`
	Type   string `json:"type,omitempty"`

	Message     string `json:"message,omitempty"`
	Story       string `json:"story,omitempty"`
	Description string `json:"description,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Name        string `json:"name,omitempty"`

	CreatedTime time.Time `json:"createdTime,omitempty"`
	Permalink   string    `json:"permalink,omitempty"`
}

// Text concatenates every non-empty text-bearing field in fixed priority
// order, joined by single spaces. An empty result means the post carries
// no checkable content.
func (p *Post) Text() string {
	parts := make([]string, 0, 5)
	for _, f := range []string{p.Message, p.Story, p.Description, p.Caption, p.Name} {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// HasText reports whether the post carries any non-whitespace content.
func (p *Post) HasText() bool {
	return strings.TrimSpace(p.Text()) != ""
}
