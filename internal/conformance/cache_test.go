package conformance_test

import (
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"

	"veld/internal/conformance"
	"veld/internal/heap"
	"veld/internal/meta"
)

func newUniverse() *meta.Universe {
	return meta.NewUniverse(heap.NewMem(), nil)
}

func TestLookupFindsRegisteredRecord(t *testing.T) {
	u := newUniverse()
	b := u.Builtins()
	point := u.NewStruct("Point", []meta.ClassField{{Name: "x", Type: b.Int64}})
	drawable := meta.NewProtocol("Drawable", false)
	wt := &meta.WitnessTable{Protocol: drawable}

	c := conformance.New(nil)
	c.Register([]conformance.Record{{Type: point, Protocol: drawable, Witness: wt}})

	got, ok := c.Lookup(point, drawable)
	if !ok || got != wt {
		t.Fatalf("Lookup = (%v, %v), want the registered table", got, ok)
	}
}

func TestLookupMissFails(t *testing.T) {
	u := newUniverse()
	b := u.Builtins()
	point := u.NewStruct("Point", []meta.ClassField{{Name: "x", Type: b.Int64}})
	c := conformance.New(nil)
	if _, ok := c.Lookup(point, meta.NewProtocol("Drawable", false)); ok {
		t.Fatalf("unregistered conformance must fail")
	}
}

func TestConformancesAreInherited(t *testing.T) {
	u := newUniverse()
	base := u.NewClass("Base", nil, nil, nil)
	derived := u.NewClass("Derived", base, nil, nil)
	p := meta.NewProtocol("Printable", false)
	wt := &meta.WitnessTable{Protocol: p}

	c := conformance.New(nil)
	c.Register([]conformance.Record{{Type: base, Protocol: p, Witness: wt}})

	got, ok := c.Lookup(derived, p)
	if !ok || got != wt {
		t.Fatalf("subclass must inherit the superclass conformance")
	}
}

func TestNegativeCacheInvalidatedByRegistration(t *testing.T) {
	u := newUniverse()
	b := u.Builtins()
	point := u.NewStruct("Point", []meta.ClassField{{Name: "x", Type: b.Int64}})
	p := meta.NewProtocol("Drawable", false)
	c := conformance.New(nil)

	if _, ok := c.Lookup(point, p); ok {
		t.Fatalf("first lookup must fail")
	}
	gen := c.Generation()

	wt := &meta.WitnessTable{Protocol: p}
	c.Register([]conformance.Record{{Type: point, Protocol: p, Witness: wt}})
	if c.Generation() == gen {
		t.Fatalf("registration must advance the generation")
	}

	got, ok := c.Lookup(point, p)
	if !ok || got != wt {
		t.Fatalf("stale negative must not be served past the generation bump")
	}
}

func TestNegativeCachedAtCurrentGenerationIsServed(t *testing.T) {
	u := newUniverse()
	b := u.Builtins()
	point := u.NewStruct("Point", []meta.ClassField{{Name: "x", Type: b.Int64}})
	p := meta.NewProtocol("Drawable", false)
	c := conformance.New(nil)

	c.Lookup(point, p)
	// Second miss must be answered from the cached negative without a
	// rescan; Generation must not move.
	gen := c.Generation()
	if _, ok := c.Lookup(point, p); ok {
		t.Fatalf("negative at current generation must still fail")
	}
	if c.Generation() != gen {
		t.Fatalf("pure lookups must not advance the generation")
	}
}

func TestMarkerProtocolStructuralFastPath(t *testing.T) {
	u := newUniverse()
	b := u.Builtins()
	anyRef := meta.NewMarkerProtocol("AnyRef")
	cls := u.NewClass("Box", nil, nil, nil)
	point := u.NewStruct("Point", []meta.ClassField{{Name: "x", Type: b.Int64}})

	c := conformance.New(nil)
	if _, ok := c.Lookup(cls, anyRef); !ok {
		t.Fatalf("any reference type must satisfy the marker structurally")
	}
	if _, ok := c.Lookup(point, anyRef); ok {
		t.Fatalf("a value type must not satisfy the marker")
	}
}

func TestPatternConformanceCoversAllInstances(t *testing.T) {
	u := newUniverse()
	b := u.Builtins()
	p := meta.NewProtocol("Sequence", false)
	pattern := &meta.GenericPattern{
		Name: "List",
		Fill: func(u *meta.Universe, args []*meta.Descriptor) *meta.Descriptor {
			return u.MakeStruct("List", []meta.ClassField{{Name: "head", Type: args[0]}})
		},
	}
	c := conformance.New(nil)
	c.Register([]conformance.Record{{
		Pattern:  pattern,
		Protocol: p,
		Accessor: func(t *meta.Descriptor) *meta.WitnessTable {
			return &meta.WitnessTable{Protocol: p, Entries: []any{t.Name}}
		},
	}})

	intList := u.Instantiate(pattern, b.Int64)
	boolList := u.Instantiate(pattern, b.Bool)
	if _, ok := c.Lookup(intList, p); !ok {
		t.Fatalf("pattern conformance must cover List[Int64]")
	}
	if _, ok := c.Lookup(boolList, p); !ok {
		t.Fatalf("pattern conformance must cover List[Bool]")
	}
}

func TestRegistrationRacingLookupIsNeverLost(t *testing.T) {
	u := newUniverse()
	b := u.Builtins()

	// A negative is cached first, then a registration races against
	// lookups that are rebuilding the index. Whatever the interleaving,
	// the registered conformance must be found once Register returns.
	for i := 0; i < 300; i++ {
		typ := u.NewStruct(fmt.Sprintf("R%d", i), []meta.ClassField{{Name: "x", Type: b.Int64}})
		p := meta.NewProtocol(fmt.Sprintf("RP%d", i), false)
		wt := &meta.WitnessTable{Protocol: p}
		c := conformance.New(nil)

		if _, ok := c.Lookup(typ, p); ok {
			t.Fatalf("iteration %d: lookup before registration must fail", i)
		}

		var g errgroup.Group
		g.Go(func() error {
			c.Register([]conformance.Record{{Type: typ, Protocol: p, Witness: wt}})
			return nil
		})
		for w := 0; w < 4; w++ {
			g.Go(func() error {
				for j := 0; j < 50; j++ {
					c.Lookup(typ, p)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("wait: %v", err)
		}

		if got, ok := c.Lookup(typ, p); !ok || got != wt {
			t.Fatalf("iteration %d: registered conformance lost", i)
		}
	}
}

func TestConcurrentLookupAndRegistration(t *testing.T) {
	u := newUniverse()
	b := u.Builtins()
	c := conformance.New(nil)

	protos := make([]*meta.Protocol, 8)
	types := make([]*meta.Descriptor, 8)
	for i := range protos {
		protos[i] = meta.NewProtocol(fmt.Sprintf("P%d", i), false)
		types[i] = u.NewStruct(fmt.Sprintf("T%d", i), []meta.ClassField{{Name: "x", Type: b.Int64}})
	}

	var g errgroup.Group
	for i := range protos {
		i := i
		g.Go(func() error {
			c.Register([]conformance.Record{{
				Type:     types[i],
				Protocol: protos[i],
				Witness:  &meta.WitnessTable{Protocol: protos[i]},
			}})
			return nil
		})
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				c.Lookup(types[i], protos[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	for i := range protos {
		if _, ok := c.Lookup(types[i], protos[i]); !ok {
			t.Fatalf("conformance %d lost", i)
		}
	}
}
