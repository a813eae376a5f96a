package event

import "sync"

// DepthUpdate and Tick are the highest-frequency messages on the
// inbox (a depth update per book change, a tick per refresh interval);
// pooling them cuts allocation pressure the way the teacher's
// sync.Pool usage does for its own hot-path event types.
var depthUpdatePool = sync.Pool{
	New: func() interface{} { return &DepthUpdate{} },
}

// AcquireDepthUpdate gets a DepthUpdate from the pool. The returned
// value has zero fields and must be initialized by the caller.
func AcquireDepthUpdate() *DepthUpdate {
	return depthUpdatePool.Get().(*DepthUpdate)
}

// ReleaseDepthUpdate resets ev and returns it to the pool. Callers
// must not touch ev after release.
func ReleaseDepthUpdate(ev *DepthUpdate) {
	if ev == nil {
		return
	}
	*ev = DepthUpdate{}
	depthUpdatePool.Put(ev)
}

var tickPool = sync.Pool{
	New: func() interface{} { return &Tick{} },
}

// AcquireTick gets a Tick from the pool.
func AcquireTick() *Tick {
	return tickPool.Get().(*Tick)
}

// ReleaseTick resets ev and returns it to the pool.
func ReleaseTick(ev *Tick) {
	if ev == nil {
		return
	}
	*ev = Tick{}
	tickPool.Put(ev)
}

// Warmup pre-allocates pooled messages to avoid a burst of allocation
// on the first refresh interval after startup.
func Warmup() {
	const batchSize = 256
	depths := make([]*DepthUpdate, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		depths = append(depths, AcquireDepthUpdate())
	}
	for _, ev := range depths {
		ReleaseDepthUpdate(ev)
	}

	ticks := make([]*Tick, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		ticks = append(ticks, AcquireTick())
	}
	for _, ev := range ticks {
		ReleaseTick(ev)
	}
}
