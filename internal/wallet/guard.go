package wallet

import (
	"sort"
	"sync"
)

// inflight tracks which accounts have a mutating request running.
type inflight struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{busy: make(map[string]struct{})}
}

// acquire claims every key or none. It never blocks: a key that is
// already held makes it return false.
func (g *inflight) acquire(keys ...string) (release func(), ok bool) {
	keys = dedupe(keys)
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		if _, held := g.busy[k]; held {
			return nil, false
		}
	}
	for _, k := range keys {
		g.busy[k] = struct{}{}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			for _, k := range keys {
				delete(g.busy, k)
			}
		})
	}, true
}

func (g *inflight) held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[key]
	return ok
}

func dedupe(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i == 0 || k != out[n-1] {
			out[n] = k
			n++
		}
	}
	return out[:n]
}
