package reservation

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits on them, so unknown ids do not accumulate.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{m: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.m[key]
	if !ok {
		e = &lockEntry{}
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.m)
}
