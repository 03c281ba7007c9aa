package orchestrator

import "sync"

// projectLocks serializes operations per project. Concurrent requests against
// the same workspace could corrupt the state file or race on directory
// removal; requests for different projects proceed independently.
type projectLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newProjectLocks() *projectLocks {
	return &projectLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire blocks until the project's lock is held and returns its release.
func (p *projectLocks) acquire(projectID string) func() {
	p.mu.Lock()
	lock, ok := p.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[projectID] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
