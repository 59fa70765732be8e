// Package preflight provides readiness checks for the filesystem paths and
// external services tubescribe depends on.
//
// The CLI "tubescribe doctor" command runs RunAll and prints one row per
// check. Checks are gated by the configured backend: the hosted API is only
// probed when recognition.backend is "openai", and local model weights only
// when it is "whisperx".
package preflight
