// Package episode defines the work model shared by the download and encode
// stages: episode work items and their sources, the artifacts a download
// produces, the grouped episode handed to encoding, and the completion record.
package episode
