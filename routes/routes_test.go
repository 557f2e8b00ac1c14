package routes

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSuggest_DidYouMean(t *testing.T) {
	// WHAT: Near misses above the cutoff are returned best first.
	// WHY: "/about" scores 0.4 and must not be offered for "/usr".
	got := Suggest("/usr", []string{"/user", "/users", "/about"}, 3, 0.5)
	if diff := cmp.Diff([]string{"/user", "/users"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSuggest_TiesKeepRegistryOrder(t *testing.T) {
	// "/sitemap", "/message" and "/healthz" all score 0.5 against "/exampel".
	candidates := []string{"/healthz", "/sitemap", "/message", "/example", "/another-example"}
	got := Suggest("/exampel", candidates, 3, 0.5)
	want := []string{"/example", "/another-example", "/healthz"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSuggest_LimitAndEmpty(t *testing.T) {
	if got := Suggest("/x", []string{"/x"}, 0, 0.5); got != nil {
		t.Errorf("limit 0: got %v", got)
	}
	if got := Suggest("/zzz", []string{"/abc"}, 3, 0.5); len(got) != 0 {
		t.Errorf("no match: got %v", got)
	}
	if got := Suggest("/a", nil, 3, 0.5); len(got) != 0 {
		t.Errorf("no candidates: got %v", got)
	}
}

func TestRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"/usr", "/user", 8.0 / 9.0},
		{"/usr", "/users", 0.8},
		{"/usr", "/about", 0.4},
		{"/same", "/same", 1},
		{"", "", 1},
	}
	for _, tc := range cases {
		if got := Ratio(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if got, back := Ratio(tc.a, tc.b), Ratio(tc.b, tc.a); math.Abs(got-back) > 1e-9 {
			t.Errorf("Ratio not symmetric for %q/%q: %v vs %v", tc.a, tc.b, got, back)
		}
	}
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("/a", "/b", "", "/a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("/c"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/a", "/b", "/c"}, r.Snapshot()); diff != "" {
		t.Errorf("snapshot (-want +got):\n%s", diff)
	}

	r.Freeze()
	r.Freeze()
	if !r.Frozen() {
		t.Error("expected frozen")
	}
	if err := r.Register("/d"); !errors.Is(err, ErrFrozen) {
		t.Errorf("register after freeze: got %v", err)
	}
	if r.Contains("/d") || !r.Contains("/b") {
		t.Error("contains mismatch")
	}
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	r.Register("/a")
	s := r.Snapshot()
	s[0] = "/mutated"
	if r.Snapshot()[0] != "/a" {
		t.Error("snapshot aliases registry storage")
	}
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	r := NewRegistry()
	r.Register("/user", "/users", "/about")
	r.Freeze()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := r.Suggest("/usr"); len(got) != 2 {
				t.Errorf("got %v", got)
			}
		}()
	}
	wg.Wait()
}
