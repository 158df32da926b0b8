// Package preflight verifies the filesystem a run writes to before any
// process is launched: directories must be writable and the work directory
// must have room for downloads.
package preflight
