// Package identifier resolves duplicate column names in query results.
// Queries may project the same name twice; tables cannot.
package identifier

import (
	"log/slog"

	"github.com/lib/pq"
)

// Dedupe returns a sequence of unique column names of the same length and
// order as the input. The first occurrence of a name is kept as-is; later
// duplicates get underscores appended until they no longer collide with any
// name chosen so far. Each rename is reported as a warning.
func Dedupe(names []string) []string {
	renamed := make([]string, 0, len(names))
	used := make(map[string]struct{}, len(names))

	for _, original := range names {
		name := original
		for {
			if _, taken := used[name]; !taken {
				break
			}
			name += "_"
		}
		if name != original {
			slog.Warn("result column renamed because the name appears twice in a query result",
				"column", pq.QuoteIdentifier(original),
				"renamed_to", pq.QuoteIdentifier(name))
		}
		used[name] = struct{}{}
		renamed = append(renamed, name)
	}
	return renamed
}
