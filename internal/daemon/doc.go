// Package daemon runs the long-lived tubescribe server.
//
// It owns the single-instance flock, the startup maintenance pass (stale
// run directories are swept and runs left in flight by a previous process
// are marked failed), and the HTTP surface that fronts api.Service. Request
// handling lives in api; the daemon focuses on startup, shutdown, and
// transport concerns such as bearer auth and request ids.
package daemon
