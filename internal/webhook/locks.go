package webhook

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// chargeLocks serializes in-process event application per provider charge id.
// Striped so the lock table stays bounded regardless of charge cardinality;
// cross-process ordering is enforced by the guarded UPDATE in the repository.
type chargeLocks struct {
	stripes [lockStripes]sync.Mutex
}

func newChargeLocks() *chargeLocks {
	return &chargeLocks{}
}

func (l *chargeLocks) Lock(chargeID string) func() {
	h := fnv.New32a()
	h.Write([]byte(chargeID))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
