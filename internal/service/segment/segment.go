// Package segment identifies utterances within a dictation session and tracks
// the lifecycle of the utterance currently being recognized.
package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator hands out utterance ids. Ids are unique per generator and their
// numeric suffix is strictly increasing.
type Generator struct {
	counter atomic.Uint64
}

// New creates a generator starting at 1.
func New() *Generator {
	return &Generator{}
}

// Next returns the id for the next utterance of sessionID.
func (g *Generator) Next(sessionID string) string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s-seg-%d", sessionID, n)
}

// Issued returns how many ids have been handed out.
func (g *Generator) Issued() uint64 {
	return g.counter.Load()
}
