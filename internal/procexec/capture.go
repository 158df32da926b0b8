package procexec

import "strings"

const captureLimit = 64 << 10

// tailBuffer keeps the most recent output of a stream up to a byte limit.
type tailBuffer struct {
	limit int
	data  []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) writeLine(line string) {
	b.data = append(b.data, line...)
	b.data = append(b.data, '\n')
	if over := len(b.data) - b.limit; over > 0 {
		b.data = append(b.data[:0], b.data[over:]...)
	}
}

func (b *tailBuffer) reset() {
	b.data = b.data[:0]
}

func (b *tailBuffer) String() string {
	return string(b.data)
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if text := strings.TrimSpace(lines[i]); text != "" {
			return text
		}
	}
	return ""
}
