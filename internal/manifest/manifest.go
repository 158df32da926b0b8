// Package manifest loads episode batches from TOML files.
//
// A manifest lists episodes and the sources each one needs:
//
//	show = "Example Show"
//
//	[[episode]]
//	id = "s01e01"
//	title = "Pilot"
//
//	[[episode.source]]
//	id = "video"
//	kind = "video+audio"
//	url = "https://example.com/watch/1"
//
//	[[episode.source]]
//	id = "subs"
//	kind = "subtitle"
//	url = "https://example.com/watch/1"
//	language = "en"
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"reeler/internal/episode"
	"reeler/internal/fileutil"
	"reeler/internal/language"
	"reeler/internal/services"
)

type document struct {
	Show     string         `toml:"show"`
	Language string         `toml:"language"`
	Episodes []episodeEntry `toml:"episode"`
}

type episodeEntry struct {
	ID      string        `toml:"id"`
	Title   string        `toml:"title"`
	Output  string        `toml:"output"`
	Sources []sourceEntry `toml:"source"`
}

type sourceEntry struct {
	ID       string `toml:"id"`
	Kind     string `toml:"kind"`
	URL      string `toml:"url"`
	Language string `toml:"language"`
}

// Load reads and validates the manifest at path.
func Load(path string) ([]episode.WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "manifest", "load", path, err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "load", path, err)
	}
	items, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return items, nil
}

// Parse decodes manifest content. Unknown keys are rejected.
func Parse(data []byte) ([]episode.WorkItem, error) {
	var doc document
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, services.Wrap(services.ErrValidation, "manifest", "parse", strings.TrimSpace(strict.String()), nil)
		}
		return nil, services.Wrap(services.ErrValidation, "manifest", "parse", "", err)
	}
	if len(doc.Episodes) == 0 {
		return nil, services.Wrap(services.ErrValidation, "manifest", "parse", "no episodes listed", nil)
	}

	show := strings.TrimSpace(doc.Show)
	items := make([]episode.WorkItem, 0, len(doc.Episodes))
	for i, entry := range doc.Episodes {
		item := episode.WorkItem{
			ID:     strings.TrimSpace(entry.ID),
			Title:  strings.TrimSpace(entry.Title),
			Output: strings.TrimSpace(entry.Output),
		}
		if item.Output == "" && show != "" {
			item.Output = filepath.Join(fileutil.SanitizeFileName(show, "show"), fileutil.SanitizeFileName(item.Label(), item.ID))
		}
		for j, src := range entry.Sources {
			kind, err := episode.ParseSourceKind(src.Kind)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "manifest", "parse", fmt.Sprintf("episode %d source %d", i+1, j+1), err)
			}
			lang := language.Normalize(src.Language)
			if lang == "" && kind == episode.KindSubtitle {
				lang = language.Normalize(doc.Language)
			}
			item.Sources = append(item.Sources, episode.Source{
				ID:       strings.TrimSpace(src.ID),
				Kind:     kind,
				Locator:  strings.TrimSpace(src.URL),
				Language: lang,
			})
		}
		items = append(items, item)
	}
	if err := episode.ValidateBatch(items); err != nil {
		return nil, err
	}
	return items, nil
}
