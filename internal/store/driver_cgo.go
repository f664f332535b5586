//go:build cgo

package store

import (
	// CGO sqlite driver, the default build.
	_ "github.com/mattn/go-sqlite3"
)

const sqlDriver = "sqlite3"
