package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reeler/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a per-test temp directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.History.Path = filepath.Join(base, "history.db")
	cfgVal.Downloader.RetryDelayMillis = 10
	cfgVal.Metrics.Bind = ""

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithParallelism sets both stage pool sizes.
func WithParallelism(download, encode int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Downloader.Parallelism = download
		b.cfg.Encoder.Parallelism = encode
	}
}

// WithStubbedBinaries writes scripts that behave like the downloader, encoder
// and prober closely enough for a full run, and points the config at them.
func WithStubbedBinaries() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Downloader.Binary = WriteScript(b.t, filepath.Join(b.baseDir, "bin", "yt-dlp"), downloaderScript)
		b.cfg.Encoder.Binary = WriteScript(b.t, filepath.Join(b.baseDir, "bin", "ffmpeg"), encoderScript)
		b.cfg.Encoder.FFprobeBinary = WriteScript(b.t, filepath.Join(b.baseDir, "bin", "ffprobe"), proberScript)
	}
}

// WithFailingDownloader replaces the downloader with a script that always exits 1.
func WithFailingDownloader() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Downloader.Binary = WriteScript(b.t, filepath.Join(b.baseDir, "bin", "yt-dlp-broken"),
			"#!/bin/sh\necho 'ERROR: HTTP Error 403: Forbidden' >&2\nexit 1\n")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}

// WriteScript writes an executable shell script and returns its path.
func WriteScript(t testing.TB, path, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}

const downloaderScript = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
file=$(printf '%s' "$out" | sed 's/%(ext)s/mp4/')
printf 'media' > "$file"
echo "[download] Destination: $file"
echo "[download] 100% of 5.00B in 00:00:00 at 5.00B/s"
`

const encoderScript = `#!/bin/sh
for last; do :; done
echo "frame=1 fps=0.0 q=-1.0 size=0kB time=00:00:01.00 bitrate=0.0kbits/s speed=1.00x" >&2
printf 'encoded' > "$last"
`

const proberScript = `#!/bin/sh
echo '{"streams":[{"codec_type":"video","duration":"2.000000"}],"format":{"duration":"2.000000","size":"5"}}'
`
