package collection_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mickamy/ormcoll/collection"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := collection.NewSession(collection.WithMetrics(collection.NewMetrics(reg)))
	role := newRole("User.Tags", collection.Set)
	first := joined(t, role, collection.NewColumns(0, 1), "first")
	second := joined(t, role, collection.NewColumns(0, 1), "second")

	runStatement(t, s, []collection.Row{{1, "go"}, {1, "sql"}, {2, "zig"}}, first, second)

	// 3 rows, 2 claims, 2 initialized collections.
	const want = 3 + 2 + 2
	n, err := testutil.GatherAndCount(reg,
		"ormcoll_rows_processed_total",
		"ormcoll_claims_total",
		"ormcoll_collections_initialized_total",
	)
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	// One series for rows, one per (role, outcome), one per (role, shape).
	if n != 3 {
		t.Errorf("series = %d, want 3", n)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	if total != want {
		t.Errorf("sum of counters = %v, want %v", total, want)
	}
}

func TestNilMetricsIsSilent(t *testing.T) {
	t.Parallel()

	s := collection.NewSession()
	role := newRole("User.Tags", collection.Set)
	runStatement(t, s, []collection.Row{{1, "go"}}, joined(t, role, collection.NewColumns(0, 1), "User.Tags"))
}
