package sensors

import "sync"

// errorSet holds the ids of currently faulted sensors. Add and Remove
// report whether the set changed, which is what gates duplicate logging.
type errorSet struct {
	faulted []string
	sync.RWMutex
}

func newErrorSet() *errorSet {
	return &errorSet{}
}

// Add adds id to the set and returns true if it was added. Returns false
// if it is already present.
func (e *errorSet) Add(id string) bool {
	e.Lock()
	defer e.Unlock()
	for _, f := range e.faulted {
		if f == id {
			return false
		}
	}
	e.faulted = append(e.faulted, id)
	return true
}

// Remove deletes id from the set and returns true if it was present.
func (e *errorSet) Remove(id string) bool {
	e.Lock()
	defer e.Unlock()
	for i, f := range e.faulted {
		if f == id {
			e.faulted = append(e.faulted[:i], e.faulted[i+1:]...)
			return true
		}
	}
	return false
}

func (e *errorSet) List() []string {
	e.RLock()
	defer e.RUnlock()
	out := make([]string, len(e.faulted))
	copy(out, e.faulted)
	return out
}
