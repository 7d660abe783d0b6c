package ports

import "github.com/bft-labs/shardspool/internal/domain"

// FileInspector reads the insert metadata (row count, byte size) of a spooled
// file. An error means the file cannot be understood as a spooled insert and
// should be quarantined rather than retried.
type FileInspector interface {
	Inspect(path string) (domain.PendingFile, error)
}
