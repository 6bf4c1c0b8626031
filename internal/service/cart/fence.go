package cart

type resource string

const (
	resourceCart  resource = "cart"
	resourceCount resource = "count"
)

// fence hands out per-resource request sequence numbers. A response may be
// applied only while its number is newer than the last one applied for its
// resource, so a request that fails never turns older reads stale.
// Callers hold the reconciler lock.
type fence struct {
	issued  map[resource]uint64
	applied map[resource]uint64
}

func newFence() fence {
	return fence{
		issued:  make(map[resource]uint64),
		applied: make(map[resource]uint64),
	}
}

func (f *fence) next(r resource) uint64 {
	f.issued[r]++
	return f.issued[r]
}

func (f *fence) current(r resource, seq uint64) bool {
	return seq > f.applied[r]
}

func (f *fence) accept(r resource, seq uint64) {
	f.applied[r] = seq
}

// supersede invalidates whatever is in flight for r.
func (f *fence) supersede(r resource) {
	f.applied[r] = f.issued[r]
}
