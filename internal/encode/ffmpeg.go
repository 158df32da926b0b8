package encode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"reeler/internal/episode"
	"reeler/internal/language"
	"reeler/internal/procexec"
)

// CommandBuilder produces the encoder invocation that writes group to output.
type CommandBuilder interface {
	Build(group episode.GroupedEpisode, output string) procexec.Command
}

// FFmpegBuilder muxes every downloaded file of an episode into one container.
type FFmpegBuilder struct {
	Binary    string
	Container string
	ExtraArgs []string
}

// Build implements CommandBuilder.
func (b FFmpegBuilder) Build(group episode.GroupedEpisode, output string) procexec.Command {
	binary := strings.TrimSpace(b.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-stats", "-y"}

	type input struct {
		path     string
		kind     episode.FileKind
		language string
	}
	var inputs []input
	for _, art := range group.Artifacts {
		for _, f := range art.Files {
			inputs = append(inputs, input{path: f.Path, kind: f.Kind, language: art.Language})
			args = append(args, "-i", f.Path)
		}
	}
	// Standalone subtitle files take the first subtitle slots so their
	// language tags are not shifted by subtitles embedded in other inputs.
	for i, in := range inputs {
		if in.kind != episode.FileSubtitle {
			args = append(args, "-map", fmt.Sprintf("%d:v?", i), "-map", fmt.Sprintf("%d:a?", i))
		}
	}
	for i, in := range inputs {
		if in.kind == episode.FileSubtitle {
			args = append(args, "-map", fmt.Sprintf("%d:s", i))
		}
	}
	for i, in := range inputs {
		if in.kind != episode.FileSubtitle {
			args = append(args, "-map", fmt.Sprintf("%d:s?", i))
		}
	}
	args = append(args, "-c", "copy")
	switch strings.ToLower(b.Container) {
	case "mp4":
		args = append(args, "-c:s", "mov_text")
	case "webm":
		args = append(args, "-c:s", "webvtt")
	}
	subtitle := 0
	for _, in := range inputs {
		if in.kind != episode.FileSubtitle {
			continue
		}
		if in.language != "" {
			args = append(args, fmt.Sprintf("-metadata:s:s:%d", subtitle), "language="+language.ToISO3(in.language))
		}
		subtitle++
	}
	if title := strings.TrimSpace(group.Item.Title); title != "" {
		args = append(args, "-metadata", "title="+title)
	}
	args = append(args, b.ExtraArgs...)
	args = append(args, output)
	return procexec.Command{Name: binary, Args: args}
}

var (
	timePattern  = regexp.MustCompile(`time=\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	speedPattern = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// statsUpdate is one parsed encoder statistics line.
type statsUpdate struct {
	Elapsed time.Duration
	Speed   float64
}

// parseStats extracts the encoded position and speed from an encoder
// statistics line. ok is false when the line carries no position.
func parseStats(line string) (statsUpdate, bool) {
	m := timePattern.FindStringSubmatch(line)
	if m == nil {
		return statsUpdate{}, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return statsUpdate{}, false
	}
	update := statsUpdate{
		Elapsed: time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds*float64(time.Second)),
	}
	if s := speedPattern.FindStringSubmatch(line); s != nil {
		update.Speed, _ = strconv.ParseFloat(s[1], 64)
	}
	return update, true
}

// clampElapsed bounds an encoder position to [0,total]. An unknown total
// reports no position.
func clampElapsed(elapsed, total time.Duration) time.Duration {
	if elapsed < 0 || total <= 0 {
		return 0
	}
	if elapsed > total {
		return total
	}
	return elapsed
}
