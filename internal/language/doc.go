// Package language normalizes the language codes that appear in manifests,
// configuration, and subtitle stream metadata.
package language
