package encode

import (
	"fmt"

	"reeler/internal/services"
)

// FileIntegrityError reports a downloaded file that is missing or unusable
// when its episode is about to be encoded.
type FileIntegrityError struct {
	EpisodeID string
	SourceID  string
	Path      string
	Err       error
}

func (e *FileIntegrityError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("episode %s: %v", e.EpisodeID, e.Err)
	}
	return fmt.Sprintf("episode %s source %s: file %s: %v", e.EpisodeID, e.SourceID, e.Path, e.Err)
}

func (e *FileIntegrityError) Unwrap() error { return e.Err }

// Is classifies integrity failures as missing inputs.
func (e *FileIntegrityError) Is(target error) bool {
	return target == services.ErrNotFound
}

// EncodeError reports a failed probe or encoder invocation for one episode.
type EncodeError struct {
	EpisodeID string
	Op        string
	Err       error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode episode %s: %s: %v", e.EpisodeID, e.Op, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
