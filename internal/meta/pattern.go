package meta

import (
	"fmt"
	"sync"

	"veld/internal/unique"
)

// GenericPattern is the per-declaration template the code generator emits
// for a generic type. Fill builds one instantiation from already-uniqued
// argument descriptors; it runs at most once per distinct argument vector.
type GenericPattern struct {
	Name string

	// Fill constructs the instantiation through the universe's Make
	// constructors and returns it unpublished; Instantiate tags it with
	// the pattern and publishes it, so a reachable descriptor always
	// carries its pattern.
	Fill func(u *Universe, args []*Descriptor) *Descriptor

	// SharedOps, when set, builds one lifecycle table valid for every
	// instantiation (all-reference layouts, typically). It runs once per
	// universe-pattern pair and is checked before the per-instance path.
	SharedOps func(u *Universe) *OpsTable

	sharedMu   sync.Mutex
	sharedOnce map[*Universe]*OpsTable
}

// Instantiate returns the unique descriptor for pattern[args...]. Concurrent
// first requests block all but one caller; losers receive the winner's
// descriptor. One cache exists per pattern, created lazily on first use.
func (u *Universe) Instantiate(p *GenericPattern, args ...*Descriptor) *Descriptor {
	if p == nil || p.Fill == nil {
		panic("meta: instantiating a pattern without a fill callback")
	}
	cache := u.patternCache(p)
	key := argsKey(args)
	return cache.GetOrBuild(key, func() *Descriptor {
		d := p.Fill(u, args)
		if d == nil {
			panic(fmt.Sprintf("meta: pattern %s produced no descriptor", p.Name))
		}
		if d.Ref() != NoRef {
			panic(fmt.Sprintf("meta: pattern %s fill published its descriptor", p.Name))
		}
		d.Pattern = p
		return u.register(d)
	})
}

func (u *Universe) patternCache(p *GenericPattern) *unique.Cache[*Descriptor] {
	u.patternsMu.Lock()
	defer u.patternsMu.Unlock()
	c, ok := u.patterns[p]
	if !ok {
		c = unique.New[*Descriptor]()
		u.patterns[p] = c
	}
	return c
}

// Shared returns the pattern's instantiation-independent ops table, building
// it on first use. Returns nil when the pattern has no shared table.
func (p *GenericPattern) Shared(u *Universe) *OpsTable {
	if p.SharedOps == nil {
		return nil
	}
	p.sharedMu.Lock()
	defer p.sharedMu.Unlock()
	if p.sharedOnce == nil {
		p.sharedOnce = make(map[*Universe]*OpsTable, 1)
	}
	if t, ok := p.sharedOnce[u]; ok {
		return t
	}
	t := p.SharedOps(u)
	p.sharedOnce[u] = t
	return t
}
