package ports

import (
	"context"

	"github.com/bft-labs/shardspool/internal/domain"
)

// Connection is a capability to deliver spooled inserts to one destination
// shard. Implementations must report success or failure distinguishably per
// call; any transport-level error is retryable from the caller's point of
// view. A send blocks the calling goroutine until it completes or fails.
type Connection interface {
	// SendBatch delivers all member files as one combined operation,
	// in the given order.
	SendBatch(ctx context.Context, files []domain.PendingFile) error

	// SendFile delivers a single spooled file.
	SendFile(ctx context.Context, file domain.PendingFile) error
}

// ConnectionProvider resolves a destination identity (the name of its spool
// directory) to a Connection. Credential and endpoint resolution live behind
// this interface; the batching core never constructs clients itself.
type ConnectionProvider interface {
	Connection(destination string) (Connection, error)
}
