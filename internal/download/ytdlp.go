package download

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"reeler/internal/episode"
	"reeler/internal/fileutil"
	"reeler/internal/procexec"
)

// CommandBuilder produces the downloader invocation for one source. dir is
// the episode's work directory; the command must write its files there and
// overwrite earlier partial output so a retry starts clean.
type CommandBuilder interface {
	Build(item episode.WorkItem, src episode.Source, dir string) procexec.Command
}

// YTDLPBuilder builds yt-dlp invocations.
type YTDLPBuilder struct {
	Binary            string
	CookieFile        string
	SubtitleLanguages []string
	ExtraArgs         []string
}

// Build implements CommandBuilder.
func (b YTDLPBuilder) Build(item episode.WorkItem, src episode.Source, dir string) procexec.Command {
	binary := strings.TrimSpace(b.Binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	template := filepath.Join(dir, fileutil.SanitizeFileName(src.ID, "source")+".%(ext)s")
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-part",
		"--no-mtime",
		"--force-overwrites",
		"-o", template,
	}

	langs := b.SubtitleLanguages
	if src.Language != "" {
		langs = []string{src.Language}
	}
	switch src.Kind {
	case episode.KindVideo:
		args = append(args, "-f", "bestvideo")
	case episode.KindAudio:
		args = append(args, "-f", "bestaudio")
	case episode.KindSubtitle:
		args = append(args, "--skip-download", "--write-subs")
		if len(langs) == 0 {
			langs = []string{"all"}
		}
	default:
		args = append(args, "-f", "bestvideo*+bestaudio/best")
	}
	if src.Kind != episode.KindAudio && len(langs) > 0 {
		if src.Kind != episode.KindSubtitle {
			args = append(args, "--write-subs")
		}
		args = append(args, "--sub-langs", strings.Join(langs, ","))
	}
	if b.CookieFile != "" {
		args = append(args, "--cookies", b.CookieFile)
	}
	args = append(args, b.ExtraArgs...)
	args = append(args, "--", src.Locator)
	return procexec.Command{Name: binary, Args: args, Dir: dir}
}

var (
	destinationPattern = regexp.MustCompile(`^\[(?:download|ExtractAudio|FixupM3u8|VideoConvertor)\] Destination: (.+)$`)
	subtitlePattern    = regexp.MustCompile(`^\[info\] Writing video (?:automatic )?subtitles to: (.+)$`)
	mergerPattern      = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`)
	existingPattern    = regexp.MustCompile(`^\[download\] (.+?) has already been downloaded(?: and merged)?$`)
	deletingPattern    = regexp.MustCompile(`^Deleting original file (.+?) \(pass -k to keep\)$`)
	progressPattern    = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%(?:\s+of\s+~?\s*(\S+))?(?:\s+at\s+(\S+(?:\s+\S+/s)?))?(?:\s+ETA\s+(\S+))?`)
)

// progressUpdate is a parsed download progress line.
type progressUpdate struct {
	Percent float64
	Size    string
	Speed   string
	ETA     string
}

// Label renders the update for progress events.
func (p progressUpdate) Label() string {
	parts := make([]string, 0, 3)
	if p.Size != "" {
		parts = append(parts, "of "+p.Size)
	}
	if p.Speed != "" && p.Speed != "Unknown" {
		parts = append(parts, "at "+p.Speed)
	}
	if p.ETA != "" && p.ETA != "Unknown" {
		parts = append(parts, "ETA "+p.ETA)
	}
	return strings.Join(parts, " ")
}

// outputParser extracts produced files and progress from one attempt's output.
type outputParser struct {
	dir   string
	files []string
}

func newOutputParser(dir string) *outputParser {
	return &outputParser{dir: dir}
}

// parse consumes one line and returns a progress update when the line carried one.
func (p *outputParser) parse(line string) (progressUpdate, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return progressUpdate{}, false
	}
	if m := progressPattern.FindStringSubmatch(line); m != nil {
		percent, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return progressUpdate{}, false
		}
		return progressUpdate{Percent: percent, Size: m[2], Speed: m[3], ETA: m[4]}, true
	}
	switch {
	case mergerPattern.MatchString(line):
		merged := p.resolve(mergerPattern.FindStringSubmatch(line)[1])
		kept := p.files[:0]
		for _, f := range p.files {
			if episode.KindForPath(f) == episode.FileSubtitle {
				kept = append(kept, f)
			}
		}
		p.files = kept
		p.record(merged)
	case destinationPattern.MatchString(line):
		p.record(p.resolve(destinationPattern.FindStringSubmatch(line)[1]))
	case subtitlePattern.MatchString(line):
		p.record(p.resolve(subtitlePattern.FindStringSubmatch(line)[1]))
	case existingPattern.MatchString(line):
		p.record(p.resolve(existingPattern.FindStringSubmatch(line)[1]))
	case deletingPattern.MatchString(line):
		p.forget(p.resolve(deletingPattern.FindStringSubmatch(line)[1]))
	}
	return progressUpdate{}, false
}

func (p *outputParser) resolve(path string) string {
	path = strings.Trim(strings.TrimSpace(path), `"`)
	if !filepath.IsAbs(path) && p.dir != "" {
		path = filepath.Join(p.dir, path)
	}
	return filepath.Clean(path)
}

func (p *outputParser) record(path string) {
	for _, existing := range p.files {
		if existing == path {
			return
		}
	}
	p.files = append(p.files, path)
}

func (p *outputParser) forget(path string) {
	kept := p.files[:0]
	for _, f := range p.files {
		if f != path {
			kept = append(kept, f)
		}
	}
	p.files = kept
}

// artifactFiles returns the discovered files with kinds inferred from extensions.
func (p *outputParser) artifactFiles() []episode.ArtifactFile {
	files := make([]episode.ArtifactFile, 0, len(p.files))
	for _, f := range p.files {
		files = append(files, episode.ArtifactFile{Path: f, Kind: episode.KindForPath(f)})
	}
	return files
}
