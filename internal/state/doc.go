// Package state provides the session store backends (JSON files on disk,
// redis, and an in-process map) and the matching logs of completed orders.
package state

import "github.com/user/orderbot/internal/types"

// Compile-time interface compliance checks.
var _ types.SessionStore = (*FileStore)(nil)
var _ types.SessionStore = (*MemoryStore)(nil)
var _ types.SessionStore = (*RedisStore)(nil)

var _ Lister = (*FileStore)(nil)
var _ Lister = (*MemoryStore)(nil)
var _ Lister = (*RedisStore)(nil)

var _ OrderLog = (*FileOrderLog)(nil)
var _ OrderLog = (*RedisOrderLog)(nil)
var _ OrderLog = (*MemoryOrderLog)(nil)
