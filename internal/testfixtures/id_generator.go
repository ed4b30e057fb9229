package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator hands out zero-padded sequential ids ("res-0001") and keeps
// the issued values so tests can compare them with what the store returned.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	issued []string
}

// NewIDGenerator returns a generator using prefix, or "id" when empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%s-%04d", g.prefix, len(g.issued)+1)
	g.issued = append(g.issued, id)
	return id
}

// NextFunc adapts the generator for store options taking func() string.
func (g *IDGenerator) NextFunc() func() string {
	return g.next
}

// Issued returns every id handed out so far, in order.
func (g *IDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}
