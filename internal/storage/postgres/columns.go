package postgres

import "strings"

const storyColumns = "id, title, url, author, posted_at, points, num_comments, kids, " +
	"comments_dump, text, domain, type, status, created_at, updated_at"

// prefixed qualifies each column in a comma separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
