package download

import (
	"testing"

	"reeler/internal/episode"
)

func groupingItems() []episode.WorkItem {
	return []episode.WorkItem{
		{ID: "e1", Sources: []episode.Source{{ID: "video", Locator: "v"}, {ID: "audio", Locator: "a"}, {ID: "subs", Locator: "s"}}},
		{ID: "e2", Sources: []episode.Source{{ID: "video", Locator: "v"}}},
	}
}

func TestGrouperEmitsInSourceOrderOnce(t *testing.T) {
	g := newGrouper(groupingItems())
	for _, src := range []string{"subs", "video"} {
		if _, ready, err := g.add(episode.DownloadedArtifact{EpisodeID: "e1", SourceID: src}); err != nil || ready {
			t.Fatalf("add %s: ready=%v err=%v", src, ready, err)
		}
	}
	if _, ready, _ := g.add(episode.DownloadedArtifact{EpisodeID: "e1", SourceID: "video"}); ready {
		t.Fatal("duplicate artifact completed the group")
	}
	group, ready, err := g.add(episode.DownloadedArtifact{EpisodeID: "e1", SourceID: "audio"})
	if err != nil || !ready {
		t.Fatalf("expected group, ready=%v err=%v", ready, err)
	}
	order := []string{group.Artifacts[0].SourceID, group.Artifacts[1].SourceID, group.Artifacts[2].SourceID}
	if order[0] != "video" || order[1] != "audio" || order[2] != "subs" {
		t.Fatalf("unexpected order %v", order)
	}
	if _, ready, _ := g.add(episode.DownloadedArtifact{EpisodeID: "e1", SourceID: "audio"}); ready {
		t.Fatal("episode emitted twice")
	}
}

func TestGrouperReportsMissingSources(t *testing.T) {
	g := newGrouper(groupingItems())
	if _, _, err := g.add(episode.DownloadedArtifact{EpisodeID: "e1", SourceID: "audio"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	missing := g.missing()
	if len(missing) != 2 {
		t.Fatalf("expected two incomplete episodes, got %v", missing)
	}
	if got := missing["e1"]; len(got) != 2 || got[0] != "video" || got[1] != "subs" {
		t.Fatalf("unexpected e1 missing %v", got)
	}
}

func TestGrouperRejectsUnknownArtifacts(t *testing.T) {
	g := newGrouper(groupingItems())
	if _, _, err := g.add(episode.DownloadedArtifact{EpisodeID: "zz", SourceID: "video"}); err == nil {
		t.Fatal("expected error for unknown episode")
	}
	if _, _, err := g.add(episode.DownloadedArtifact{EpisodeID: "e2", SourceID: "audio"}); err == nil {
		t.Fatal("expected error for unexpected source")
	}
}
