package observ_test

import (
	"strings"
	"testing"

	"veld/internal/observ"
)

func TestTimerCollectsStages(t *testing.T) {
	timer := observ.NewTimer()
	s := timer.Start("build")
	s.Stop(412, "types")
	timer.Start("write").Stop(1024, "bytes")

	r := timer.Report()
	if len(r.Stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(r.Stages))
	}
	if r.Stages[0].Name != "build" || r.Stages[0].Count != 412 || r.Stages[0].Unit != "types" {
		t.Fatalf("build stage = %+v", r.Stages[0])
	}
	if r.Stages[0].DurationMS < 0 || r.TotalMS < r.Stages[0].DurationMS {
		t.Fatalf("totals out of order: %+v", r)
	}

	out := timer.Summary()
	for _, want := range []string{"build", "412 types", "1024 bytes", "total"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestEmptyTimerReportsNothing(t *testing.T) {
	r := observ.NewTimer().Report()
	if len(r.Stages) != 0 || r.TotalMS != 0 {
		t.Fatalf("empty timer report = %+v", r)
	}
}
