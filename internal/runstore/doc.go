// Package runstore persists pipeline run history in SQLite.
//
// Every transcription run is inserted when it starts and updated when it
// reaches a terminal state, including the error kind on failure and the full
// linked transcript on success. Runs left non-terminal by a crash are marked
// failed the next time the server starts.
//
// Schema changes bump schemaVersion in schema.go; users delete runs.db to
// adopt the new schema.
package runstore
