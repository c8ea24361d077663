// Package normalize cleans user-supplied text before it is stored.
package normalize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/tallyhub/internal/domain/models"
	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Name trims a display name, strips any markup, and collapses internal runs
// of whitespace to a single space.
func Name(s string) string {
	clean := html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(clean), " ")
}

// GroupName normalizes a group name and caps it at models.MaxGroupNameLen
// characters. A blank name becomes models.DefaultGroupName.
func GroupName(s string) string {
	n := Name(s)
	if utf8.RuneCountInString(n) > models.MaxGroupNameLen {
		n = strings.TrimSpace(string([]rune(n)[:models.MaxGroupNameLen]))
	}
	if n == "" {
		return models.DefaultGroupName
	}
	return n
}
