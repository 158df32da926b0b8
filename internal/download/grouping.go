package download

import (
	"fmt"

	"reeler/internal/episode"
)

// grouper accumulates artifacts per episode. It is owned by a single goroutine.
type grouper struct {
	items    map[string]episode.WorkItem
	order    []string
	received map[string]map[string]episode.DownloadedArtifact
	emitted  map[string]struct{}
}

func newGrouper(items []episode.WorkItem) *grouper {
	g := &grouper{
		items:    make(map[string]episode.WorkItem, len(items)),
		received: make(map[string]map[string]episode.DownloadedArtifact, len(items)),
		emitted:  make(map[string]struct{}, len(items)),
	}
	for _, item := range items {
		g.items[item.ID] = item
		g.order = append(g.order, item.ID)
	}
	return g
}

// add records an artifact and returns the completed group once the episode's
// manifest is satisfied. Duplicates and artifacts for already emitted
// episodes are ignored.
func (g *grouper) add(art episode.DownloadedArtifact) (episode.GroupedEpisode, bool, error) {
	item, ok := g.items[art.EpisodeID]
	if !ok {
		return episode.GroupedEpisode{}, false, fmt.Errorf("artifact for unknown episode %q", art.EpisodeID)
	}
	if _, done := g.emitted[art.EpisodeID]; done {
		return episode.GroupedEpisode{}, false, nil
	}
	if !expects(item, art.SourceID) {
		return episode.GroupedEpisode{}, false, fmt.Errorf("episode %q does not expect source %q", art.EpisodeID, art.SourceID)
	}
	got := g.received[art.EpisodeID]
	if got == nil {
		got = make(map[string]episode.DownloadedArtifact, len(item.Sources))
		g.received[art.EpisodeID] = got
	}
	if _, dup := got[art.SourceID]; dup {
		return episode.GroupedEpisode{}, false, nil
	}
	got[art.SourceID] = art
	if len(got) < len(item.Sources) {
		return episode.GroupedEpisode{}, false, nil
	}

	group := episode.GroupedEpisode{Item: item, Artifacts: make([]episode.DownloadedArtifact, 0, len(item.Sources))}
	for _, src := range item.Sources {
		group.Artifacts = append(group.Artifacts, got[src.ID])
	}
	delete(g.received, art.EpisodeID)
	g.emitted[art.EpisodeID] = struct{}{}
	return group, true, nil
}

// missing lists the sources still outstanding for every unemitted episode.
func (g *grouper) missing() map[string][]string {
	out := make(map[string][]string)
	for _, id := range g.order {
		if _, done := g.emitted[id]; done {
			continue
		}
		got := g.received[id]
		for _, src := range g.items[id].Sources {
			if _, ok := got[src.ID]; !ok {
				out[id] = append(out[id], src.ID)
			}
		}
	}
	return out
}

func expects(item episode.WorkItem, sourceID string) bool {
	for _, src := range item.Sources {
		if src.ID == sourceID {
			return true
		}
	}
	return false
}
