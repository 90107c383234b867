package unique

import (
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestFindClaimsAbsentKey(t *testing.T) {
	c := New[int]()
	if _, found := c.Find("k"); found {
		t.Fatalf("absent key reported found")
	}
	c.Add("k", 42)
	v, found := c.Find("k")
	if !found || v != 42 {
		t.Fatalf("Find after Add = (%d, %v), want (42, true)", v, found)
	}
}

func TestDistinctKeysDistinctEntries(t *testing.T) {
	c := New[*int]()
	a, b := new(int), new(int)
	c.Find(Key(1, 2))
	c.Add(Key(1, 2), a)
	c.Find(Key(1, 3))
	c.Add(Key(1, 3), b)

	got, _ := c.Find(Key(1, 2))
	if got != a {
		t.Fatalf("key (1,2) resolved to wrong payload")
	}
	got, _ = c.Find(Key(1, 3))
	if got != b {
		t.Fatalf("key (1,3) resolved to wrong payload")
	}
}

func TestConcurrentBuildRunsOnce(t *testing.T) {
	c := New[*int]()
	var builds atomic.Int32

	const workers = 32
	results := make([]*int, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			results[i] = c.GetOrBuild("novel", func() *int {
				builds.Add(1)
				return new(int)
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if n := builds.Load(); n != 1 {
		t.Fatalf("build ran %d times, want 1", n)
	}
	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatalf("worker %d observed a different payload", i)
		}
	}
}

func TestAddWithoutFindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Add without Find must panic")
		}
	}()
	New[int]().Add("k", 1)
}

func TestDuplicateAddPanics(t *testing.T) {
	c := New[int]()
	c.Find("k")
	c.Add("k", 1)
	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate Add must panic")
		}
	}()
	c.Add("k", 2)
}

func TestKeyStability(t *testing.T) {
	if Key(1, 2, 3) != Key(1, 2, 3) {
		t.Fatalf("equal vectors must render equal keys")
	}
	if Key(1, 2, 3) == Key(1, 2, 4) {
		t.Fatalf("differing vectors must render different keys")
	}
	if Key(0x12, 0x34) == Key(0x123, 0x4) {
		t.Fatalf("segment boundaries must be unambiguous")
	}
}
