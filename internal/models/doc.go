// Package models holds the static recognition model catalog and the registry
// of resident model instances.
//
// The registry keeps up to a configured number of models loaded, keyed by
// catalog name. Concurrent requests for the same model share one load.
// Callers hold a Lease while transcribing so the model they use is never
// evicted underneath them; eviction picks the least recently used model
// that nobody holds.
package models
