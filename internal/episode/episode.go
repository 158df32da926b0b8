package episode

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"reeler/internal/services"
)

// SourceKind classifies what a source contributes to the final episode.
type SourceKind string

const (
	KindVideo          SourceKind = "video"
	KindVideoWithAudio SourceKind = "video+audio"
	KindAudio          SourceKind = "audio"
	KindSubtitle       SourceKind = "subtitle"
)

// ParseSourceKind maps a manifest value onto a SourceKind. Empty defaults to video+audio.
func ParseSourceKind(value string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "video+audio", "av", "muxed":
		return KindVideoWithAudio, nil
	case "video":
		return KindVideo, nil
	case "audio":
		return KindAudio, nil
	case "subtitle", "subtitles", "sub":
		return KindSubtitle, nil
	default:
		return "", fmt.Errorf("unknown source kind %q", value)
	}
}

// Source is one downloadable input of an episode.
type Source struct {
	ID       string
	Kind     SourceKind
	Locator  string
	Language string
}

// WorkItem is a logical episode with the ordered sources that must all be
// downloaded before it can be encoded.
type WorkItem struct {
	ID      string
	Title   string
	Output  string
	Sources []Source
}

// Label returns the human-facing name of the episode.
func (w WorkItem) Label() string {
	if title := strings.TrimSpace(w.Title); title != "" {
		return title
	}
	return w.ID
}

// OutputBase returns the output path relative to the output directory,
// without extension.
func (w WorkItem) OutputBase() string {
	if out := strings.TrimSpace(w.Output); out != "" {
		return filepath.Clean(out)
	}
	return w.ID
}

// ExpectedSources returns the manifest of source IDs a complete group must contain.
func (w WorkItem) ExpectedSources() []string {
	ids := make([]string, 0, len(w.Sources))
	for _, src := range w.Sources {
		ids = append(ids, src.ID)
	}
	return ids
}

// Validate rejects items that could never form a complete group.
func (w WorkItem) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return services.Wrap(services.ErrValidation, "episode", "validate", "episode id is empty", nil)
	}
	if len(w.Sources) == 0 {
		return services.Wrap(services.ErrValidation, "episode", "validate", fmt.Sprintf("episode %q has no sources", w.ID), nil)
	}
	if out := w.OutputBase(); filepath.IsAbs(out) || out == ".." || strings.HasPrefix(out, "../") {
		return services.Wrap(services.ErrValidation, "episode", "validate", fmt.Sprintf("episode %q output %q escapes the output directory", w.ID, w.Output), nil)
	}
	seen := make(map[string]struct{}, len(w.Sources))
	for _, src := range w.Sources {
		if strings.TrimSpace(src.ID) == "" {
			return services.Wrap(services.ErrValidation, "episode", "validate", fmt.Sprintf("episode %q has a source without id", w.ID), nil)
		}
		if _, dup := seen[src.ID]; dup {
			return services.Wrap(services.ErrValidation, "episode", "validate", fmt.Sprintf("episode %q lists source %q twice", w.ID, src.ID), nil)
		}
		seen[src.ID] = struct{}{}
		if strings.TrimSpace(src.Locator) == "" {
			return services.Wrap(services.ErrValidation, "episode", "validate", fmt.Sprintf("episode %q source %q has no locator", w.ID, src.ID), nil)
		}
	}
	return nil
}

// ValidateBatch validates every item and rejects duplicate episode IDs.
func ValidateBatch(items []WorkItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		if _, dup := seen[item.ID]; dup {
			return services.Wrap(services.ErrValidation, "episode", "validate", fmt.Sprintf("episode %q listed twice", item.ID), nil)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

// FileKind is the media type of a downloaded file.
type FileKind string

const (
	FileVideo    FileKind = "video"
	FileAudio    FileKind = "audio"
	FileSubtitle FileKind = "subtitle"
)

var extensionKinds = map[string]FileKind{
	".vtt":  FileSubtitle,
	".srt":  FileSubtitle,
	".ass":  FileSubtitle,
	".ssa":  FileSubtitle,
	".ttml": FileSubtitle,
	".m4a":  FileAudio,
	".mp3":  FileAudio,
	".opus": FileAudio,
	".ogg":  FileAudio,
	".aac":  FileAudio,
	".flac": FileAudio,
	".wav":  FileAudio,
}

// KindForPath infers a file kind from its extension. Anything unrecognized is
// treated as video.
func KindForPath(path string) FileKind {
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return FileVideo
}

// ArtifactFile is one file produced by a download.
type ArtifactFile struct {
	Path string
	Kind FileKind
}

// DownloadedArtifact is the result of downloading one source.
type DownloadedArtifact struct {
	EpisodeID string
	SourceID  string
	Kind      SourceKind
	Language  string
	Files     []ArtifactFile
	Attempts  int
}

// GroupedEpisode is emitted once every expected source of an episode has been
// downloaded. Artifacts follow the order of the item's sources.
type GroupedEpisode struct {
	Item      WorkItem
	Artifacts []DownloadedArtifact
}

// Files flattens the artifact files in source order.
func (g GroupedEpisode) Files() []ArtifactFile {
	var files []ArtifactFile
	for _, art := range g.Artifacts {
		files = append(files, art.Files...)
	}
	return files
}

// Completion records a successfully encoded episode.
type Completion struct {
	EpisodeID  string
	Title      string
	OutputPath string
	Duration   time.Duration
	Elapsed    time.Duration
	SizeBytes  int64
	FinishedAt time.Time
}
