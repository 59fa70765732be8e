// Package config loads, normalizes, and validates tubescribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY and HF_TOKEN. The Config type centralizes every knob the
// server and CLI need: where audio artifacts are materialised, how yt-dlp is
// invoked, which recognition backend and model to use, and how wide the fixed
// transcript windows are.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
