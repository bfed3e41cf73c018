package app

import (
	"path/filepath"
	"sync"

	"exifai/internal/domain"
)

// writeTarget is the file a write for path actually replaces. RAW siblings
// such as IMG_1.CR2 and IMG_1.NEF share one sidecar.
func writeTarget(path string, kind domain.ContainerKind) string {
	if kind.IsSidecar() {
		return filepath.Clean(domain.SidecarPath(path))
	}
	return filepath.Clean(path)
}

// targetLocks serialises writes per target file. The zero value is ready.
type targetLocks struct {
	mu    sync.Mutex
	locks map[string]*targetLock
}

type targetLock struct {
	sync.Mutex
	refs int
}

// lock blocks until target is free and returns its release func.
func (l *targetLocks) lock(target string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*targetLock)
	}
	t, ok := l.locks[target]
	if !ok {
		t = &targetLock{}
		l.locks[target] = t
	}
	t.refs++
	l.mu.Unlock()

	t.Lock()
	return func() {
		t.Unlock()
		l.mu.Lock()
		t.refs--
		if t.refs == 0 {
			delete(l.locks, target)
		}
		l.mu.Unlock()
	}
}
