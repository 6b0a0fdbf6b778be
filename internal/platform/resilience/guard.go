package resilience

import "sync"

// Guard is a non-blocking keyed mutex: a second TryAcquire for a held key
// fails immediately instead of waiting.
type Guard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func (g *Guard) TryAcquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = make(map[string]struct{})
	}
	if _, busy := g.held[key]; busy {
		return nil, false
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, true
}

func (g *Guard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.held[key]
	return busy
}
