// Package services defines shared utilities consumed by the transcription
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper. Every pipeline failure is
//     tagged with one marker so KindOf and HTTPStatus can turn it into a
//     stable error kind and status code at the API boundary.
//
// Recognition backends live in subpackages (whisperx, openaiasr).
package services
