package sqlxrepos

import (
	"strings"

	"github.com/darasahq/darasa/core"
)

// orderBy renders an ORDER BY clause from engine-neutral orderings.
func orderBy(ords ...core.DBOrdering) string {
	parts := make([]string, 0, len(ords))
	for _, ord := range ords {
		parts = append(parts, ord.String())
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}
