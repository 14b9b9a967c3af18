package validator

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// entityLocks serializes work per entity id with a fixed set of mutexes.
// Two ids may share a stripe; one id always maps to the same stripe.
type entityLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *entityLocks) lock(entityID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entityID))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
