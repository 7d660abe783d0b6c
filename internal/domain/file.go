package domain

// PendingFile represents a single spooled insert queued for asynchronous
// delivery to a remote shard. The path is its identity: stable and unique
// within a spool directory. A pending file is immutable once observed and is
// removed from the filesystem only after confirmed delivery or quarantine.
type PendingFile struct {
	// Path is the absolute path of the spooled file.
	Path string

	// Bytes is the file size in bytes.
	Bytes uint64

	// Rows is the number of rows carried by the file. Zero means unknown,
	// which happens for members reconstructed from a batch descriptor.
	Rows uint64
}
