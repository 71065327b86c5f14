package client

import "sync"

type itemKey struct {
	orderID   int64
	productID int64
}

// ItemGuard allows at most one mutating request per order item at a time
type ItemGuard struct {
	mu       sync.Mutex
	inFlight map[itemKey]struct{}
}

// NewItemGuard creates an empty guard
func NewItemGuard() *ItemGuard {
	return &ItemGuard{inFlight: make(map[itemKey]struct{})}
}

// Acquire marks the item busy. The returned release func must be called once
// the request finishes.
func (g *ItemGuard) Acquire(orderID, productID int64) (release func(), err error) {
	key := itemKey{orderID, productID}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return nil, ErrActionInFlight
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, nil
}

// Busy reports whether a request for the item is outstanding
func (g *ItemGuard) Busy(orderID, productID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[itemKey{orderID, productID}]
	return busy
}
