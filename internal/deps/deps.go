// Package deps checks that the external tools a run drives are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reeler/internal/config"
	"reeler/internal/services"
)

// Requirement names an external binary.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a requirement resolved on PATH.
type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// ForConfig lists the tools a run with cfg will invoke.
func ForConfig(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "Downloader", Command: cfg.Downloader.Binary, Description: "Fetches episode sources"},
		{Name: "Encoder", Command: cfg.Encoder.Binary, Description: "Muxes downloaded sources into the output container"},
		{Name: "Prober", Command: cfg.Encoder.FFprobeBinary, Description: "Reads input durations for encode progress"},
	}
}

// CheckBinaries resolves every requirement.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		status := Status{Requirement: req}
		switch path, err := exec.LookPath(req.Command); {
		case req.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			status.Path = path
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// Missing returns an error naming every required tool that is unavailable.
func Missing(statuses []Status) error {
	var missing []string
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, fmt.Sprintf("%s (%s)", s.Name, s.Detail))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "deps", "check", "missing tools: "+strings.Join(missing, ", "), nil)
}
