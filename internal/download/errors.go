package download

import (
	"fmt"
	"sort"
	"strings"
)

// IncompleteGroupingError reports episodes whose expected sources never all
// produced an artifact. Missing maps episode IDs to the absent source IDs.
type IncompleteGroupingError struct {
	Missing map[string][]string
}

func (e *IncompleteGroupingError) Error() string {
	episodes := make([]string, 0, len(e.Missing))
	for id := range e.Missing {
		episodes = append(episodes, id)
	}
	sort.Strings(episodes)
	parts := make([]string, 0, len(episodes))
	for _, id := range episodes {
		parts = append(parts, fmt.Sprintf("%s missing [%s]", id, strings.Join(e.Missing[id], ", ")))
	}
	return "incomplete episode grouping: " + strings.Join(parts, "; ")
}
