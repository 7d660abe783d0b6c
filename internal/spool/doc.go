// Package spool implements the durable batch lifecycle for a single
// per-destination spool directory.
//
// Spooled files are grouped into a [Batch] under configured thresholds. Before
// any network attempt the batch commits its membership and aggregate size to a
// descriptor file (current_batch.txt) inside the spool directory, so that a
// crash mid-send can be recovered from disk state alone. On delivery, member
// files are deleted strictly after their own acknowledgment, and the
// descriptor is deleted last.
//
// The package assumes single-writer access to its directory; the owning
// scheduler enforces that at most one batch per directory is persisting or
// sending at a time.
package spool
