package watch

import "sync"

// pathLocks serializes work on one path while letting different paths
// proceed in parallel
type pathLocks struct {
	locks sync.Map // map[string]*sync.Mutex
}

func (pl *pathLocks) lock(path string) *sync.Mutex {
	mu, _ := pl.locks.LoadOrStore(path, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m
}

// forget drops the mutex of a path that no longer exists
func (pl *pathLocks) forget(path string) {
	pl.locks.Delete(path)
}
