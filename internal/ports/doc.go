// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the application core and the outside world.
// They define what the core needs from external systems without specifying how
// those needs are fulfilled.
//
// # Port Interfaces
//
//   - [Connection]: Sends batches or single files to a destination shard
//   - [ConnectionProvider]: Resolves a destination identity to a Connection
//   - [FileInspector]: Reads per-file insert metadata from a spooled file
//
// The application layer (internal/app, internal/spool) depends only on these
// interfaces. Infrastructure adapters (internal/adapters) implement them.
package ports
