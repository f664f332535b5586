//go:build !cgo

package store

import (
	// Pure-Go sqlite driver for CGO-free builds.
	_ "modernc.org/sqlite"
)

const sqlDriver = "sqlite"
