// Package memory implements a local-first memory store for coding
// agents: markdown session files as the durable source of truth, a
// SQLite index with FTS5 keyword search and sqlite-vec semantic search
// layered on top, and a save pipeline that redacts secrets and merges
// near-duplicate memories instead of accumulating them.
package memory
