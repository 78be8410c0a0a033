package job

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator hands out job IDs. IDs are random UUIDs prefixed with a
// process-local sequence number so logs sort by submission order.
type Generator struct {
	counter uint64
}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Next() string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("job-%d-%s", n, uuid.NewString())
}
