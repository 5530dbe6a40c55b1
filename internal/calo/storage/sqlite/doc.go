// Package sqlite persists reconstructed clusters in a SQLite database.
//
// The schema is embedded and managed with golang-migrate; Open brings an
// existing file up to the latest version. ClusterStore implements
// pipeline.Sink so it can be attached directly to a batch run.
package sqlite
