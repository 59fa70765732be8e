// Package whisperx runs speech recognition through the WhisperX CLI.
//
// This package handles:
//   - Audio normalization to mono 16kHz WAV via ffmpeg
//   - WhisperX invocation through uvx with the selected model and device
//   - Parsing word-level timings and scores from the JSON output
//
// Service implements models.Loader so the model registry can hand out
// WhisperX-backed models keyed by catalog name.
package whisperx
