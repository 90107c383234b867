// Package conformance resolves (type, protocol) pairs to witness tables.
// Conformance records arrive in bulk from dynamically loaded code and are
// indexed lazily: registration never blocks readers, and cached negative
// answers carry the generation at which they failed so later registrations
// invalidate them.
package conformance

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"veld/internal/meta"
)

// Record declares one conformance: a concrete type or a generic pattern,
// the protocol, and the witness table or its per-instance accessor.
type Record struct {
	Type    *meta.Descriptor
	Pattern *meta.GenericPattern

	Protocol *meta.Protocol

	Witness  *meta.WitnessTable
	Accessor func(t *meta.Descriptor) *meta.WitnessTable
}

type typeKey struct {
	t *meta.Descriptor
	p *meta.Protocol
}

type patternKey struct {
	pat *meta.GenericPattern
	p   *meta.Protocol
}

type entry struct {
	witness  *meta.WitnessTable
	accessor func(t *meta.Descriptor) *meta.WitnessTable
	negative bool
	gen      uint64
}

// Cache is the process-scoped conformance index. Readers share a read lock;
// index rebuilds take the write lock; the pending-record queue has its own
// lock so registration and consultation never contend.
type Cache struct {
	mu       sync.RWMutex
	types    map[typeKey]entry
	patterns map[patternKey]entry

	// registered counts record batches ever registered; indexed trails it
	// and advances once per drain. A negative entry is stale when batches
	// arrived after it was cached.
	registered atomic.Uint64
	indexed    uint64

	pendingMu sync.Mutex
	pending   []Record

	log *zap.Logger
}

// New returns an empty cache. log may be nil.
func New(log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		types:    make(map[typeKey]entry, 64),
		patterns: make(map[patternKey]entry, 16),
		log:      log,
	}
}

// Register queues one contiguous batch of records for lazy indexing, as
// emitted by dynamically loaded code. Safe to call concurrently with
// lookups; it only touches the pending queue.
func (c *Cache) Register(records []Record) {
	if len(records) == 0 {
		return
	}
	c.pendingMu.Lock()
	c.pending = append(c.pending, records...)
	c.pendingMu.Unlock()
	gen := c.registered.Add(1)
	c.log.Debug("conformance records registered",
		zap.Int("count", len(records)),
		zap.Uint64("generation", gen))
}

// Generation reports how many record batches have been registered.
func (c *Cache) Generation() uint64 {
	return c.registered.Load()
}

// Lookup resolves the witness table for (t, p). A nil witness with ok=true
// means the conformance is structural and carries no table.
func (c *Cache) Lookup(t *meta.Descriptor, p *meta.Protocol) (*meta.WitnessTable, bool) {
	if t == nil || p == nil {
		return nil, false
	}
	// Structural fast path: any reference type satisfies a marker
	// protocol, answered from the kind alone.
	if p.RefOnly && t.Kind.IsReference() {
		return nil, true
	}

	for {
		w, ok, decided := c.scan(t, p)
		if decided {
			return w, ok
		}
		if c.drain() == 0 {
			// Nothing new to index: cache the failure at the
			// current generation and fail.
			c.storeNegative(t, p)
			return nil, false
		}
		// Another thread may have populated the index meanwhile;
		// retry the whole lookup from the top.
	}
}

// scan walks the superclass chain under the read lock. decided=false means
// the answer is unknown at the current generation and pending records must
// be drained first.
func (c *Cache) scan(t *meta.Descriptor, p *meta.Protocol) (w *meta.WitnessTable, ok, decided bool) {
	registered := c.registered.Load()
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Pattern fast path: one shared answer for every instantiation,
	// checked before the chain walk.
	if t.Pattern != nil {
		if e, found := c.patterns[patternKey{pat: t.Pattern, p: p}]; found && !e.negative {
			return c.resolve(e, t), true, true
		}
	}

	for anc := t; anc != nil; anc = anc.Superclass() {
		if e, found := c.types[typeKey{t: anc, p: p}]; found {
			if !e.negative {
				return c.resolve(e, t), true, true
			}
			// A negative is only authoritative while no batches
			// arrived after it was cached; stale negatives fall
			// through to a rescan.
			if anc == t && e.gen >= registered {
				return nil, false, true
			}
			continue
		}
		if anc.Pattern != nil {
			if e, found := c.patterns[patternKey{pat: anc.Pattern, p: p}]; found && !e.negative {
				return c.resolve(e, anc), true, true
			}
		}
	}

	if c.indexed == registered {
		// Index is current and holds no answer; a cached negative
		// will be stored by the caller.
		if c.hasNegative(t, p) {
			return nil, false, true
		}
	}
	return nil, false, false
}

func (c *Cache) hasNegative(t *meta.Descriptor, p *meta.Protocol) bool {
	e, found := c.types[typeKey{t: t, p: p}]
	return found && e.negative
}

func (c *Cache) resolve(e entry, t *meta.Descriptor) *meta.WitnessTable {
	if e.witness != nil {
		return e.witness
	}
	if e.accessor != nil {
		return e.accessor(t)
	}
	return nil
}

// drain indexes every pending record under the write lock and advances the
// indexed generation once. Returns the number of records indexed.
func (c *Cache) drain() int {
	// The generation is loaded before the queue is taken: a batch
	// registered after this load is either in the taken queue or still
	// pending, so indexed never advances past records drain did not see.
	registered := c.registered.Load()

	c.pendingMu.Lock()
	batch := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(batch) == 0 && c.indexed == registered {
		return 0
	}
	for _, r := range batch {
		e := entry{witness: r.Witness, accessor: r.Accessor, gen: registered}
		switch {
		case r.Type != nil:
			c.types[typeKey{t: r.Type, p: r.Protocol}] = e
		case r.Pattern != nil:
			c.patterns[patternKey{pat: r.Pattern, p: r.Protocol}] = e
		}
	}
	drained := len(batch)
	if registered > c.indexed {
		c.indexed = registered
	}
	c.log.Debug("conformance index rebuilt",
		zap.Int("drained", drained),
		zap.Uint64("generation", registered))
	if drained == 0 {
		// The generation advanced without records to index; report
		// progress so the caller retries once more.
		return 1
	}
	return drained
}

// storeNegative caches a failed lookup at the current generation. Ancestor
// entries are left untouched: a later, more specific registration is only
// observed through the generation bump.
func (c *Cache) storeNegative(t *meta.Descriptor, p *meta.Protocol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Tag with the generation the index has actually absorbed, so a batch
	// registered after our drain still invalidates this entry.
	gen := c.indexed
	if e, found := c.types[typeKey{t: t, p: p}]; found && !e.negative {
		// Lost a race against an index rebuild that found an answer.
		return
	}
	c.types[typeKey{t: t, p: p}] = entry{negative: true, gen: gen}
}
