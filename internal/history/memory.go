package history

import "sync"

// MemoryPersistence keeps the payload for the lifetime of the process.
type MemoryPersistence struct {
	mu    sync.Mutex
	value string
	saved bool
}

func (p *MemoryPersistence) Save(serialized string) error {
	p.mu.Lock()
	p.value, p.saved = serialized, true
	p.mu.Unlock()
	return nil
}

func (p *MemoryPersistence) Load() (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.saved, nil
}
