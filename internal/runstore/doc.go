// Package runstore persists pipeline run history in SQLite. Every run
// records its start, and on completion its status, duration, metadata, and
// produced artifacts, so past runs can be listed and inspected after the
// process exits.
package runstore
