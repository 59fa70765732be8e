// Package pipeline sequences one transcription run: reference intake,
// metadata lookup, audio retrieval, recognition, fixed-window segmentation,
// and deep-link construction.
//
// Each call to Pipeline.Run is a single sequential unit of work and owns the
// audio artifact it materializes. The artifact is handed to the Releaser on
// every exit path once it exists, so successful and failed runs alike leave
// nothing behind in the storage area. Failures before materialization abort
// without touching storage.
//
// Runs are tagged with a UUID run id that flows through the context into
// logs and, when a Recorder is attached, into the run history.
package pipeline
