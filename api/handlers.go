// Package api exposes snapshot history and diffs over HTTP.
package api

import (
	"github.com/xiaoyuanzhu-com/filehistory/snapshot"
	"github.com/xiaoyuanzhu-com/filehistory/store"
)

// History is the read and management surface the handlers need.
// *store.Store implements it.
type History interface {
	ListAll() []snapshot.Snapshot
	ListForPath(path string) []snapshot.Snapshot
	Get(name string) (snapshot.Snapshot, bool)
	Previous(snap snapshot.Snapshot) (snapshot.Snapshot, bool)
	DeleteForPath(path string) int
	Files() []store.FileSummary
}

// Handlers holds the components the routes operate on
type Handlers struct {
	history History
	root    string // restores are confined to this directory when set
}

// NewHandlers creates handlers over history. root bounds where restore may
// write; empty allows any path.
func NewHandlers(history History, root string) *Handlers {
	return &Handlers{history: history, root: root}
}
