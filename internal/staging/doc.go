// Package staging owns the ephemeral audio storage area.
//
// Every pipeline run materialises its audio into its own directory under the
// storage root, so concurrent runs for the same video never share a file.
// Area confines all removals to the root. Janitor deletes released run
// directories off the request path, and CleanStale sweeps directories left
// behind by a crash.
package staging
