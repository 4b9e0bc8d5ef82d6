package atomic

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator produces server-assigned resource identifiers.
// Implemented by UUIDGenerator (production) and SequentialGenerator
// (deterministic tests and golden files).
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator assigns random UUIDs.
type UUIDGenerator struct{}

// NewID returns a new UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// SequentialGenerator assigns "prefix-1", "prefix-2", ... in call order.
// Not safe for concurrent use; the pipeline executes operations
// sequentially within a batch.
type SequentialGenerator struct {
	prefix string
	next   int
}

// NewSequentialGenerator creates a generator with the given prefix.
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	return &SequentialGenerator{prefix: prefix}
}

// NewID returns the next identifier in sequence.
func (g *SequentialGenerator) NewID() string {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next)
}
