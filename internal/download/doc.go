// Package download runs the downloader process once per episode source
// through a bounded pool and groups the resulting artifacts per episode.
//
// Grouping is driven by an explicit manifest: each episode lists the source
// IDs it expects, and a GroupedEpisode is emitted exactly once, as soon as
// every listed source has produced an artifact. Repeated artifacts for a
// source are dropped. When the pool drains with episodes still short of their
// manifest, Run fails with an IncompleteGroupingError and never emits a
// partial group.
package download
