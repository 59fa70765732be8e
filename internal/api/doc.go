// Package api defines the request and response types of the tubescribe
// boundary and the Service that produces them. The HTTP server and the CLI
// both call Service, so the two surfaces always agree on shapes and error
// kinds.
//
// # Outcomes
//
// Every response embeds Envelope. Service methods return the populated
// response together with an error; Failure renders any error into an
// Envelope with success=false, the error message, and services.KindOf as
// error_kind. HTTPStatus in package services picks the status code.
//
// # Field names
//
// JSON fields use snake_case (transcript_segments, whisper_model_used,
// processing_time) so existing REST clients keep working.
package api
