// Package youtube resolves video references and materialises audio through
// yt-dlp.
//
// Client implements the retrieval half of the pipeline: Validate parses a
// URL into a Reference, FetchMetadata runs yt-dlp in JSON mode without
// downloading, and Download writes the best audio track into a fresh run
// directory allocated from the storage area. Download inspects what yt-dlp
// left behind, deletes anything that is not audio, and removes the run
// directory itself on every failure so callers only ever own a valid
// Artifact.
package youtube
