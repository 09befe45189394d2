package notify

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBatchGrouping(t *testing.T) {
	b := NewBatch()
	if !b.Empty() {
		t.Fatal("new batch should be empty")
	}

	b.Add("Food > Dairy", "milk low")
	b.Add("Hardware", "rope out")
	b.Add("Food > Dairy", "cheese expired")
	b.Add("Food > Dairy", "butter low")
	b.Add("Hardware", "nails low")

	if b.Empty() {
		t.Error("batch with alerts reported empty")
	}
	if got := b.Total(); got != 5 {
		t.Errorf("Total() = %d, want 5", got)
	}

	want := []Group{
		{Category: "Food > Dairy", Alerts: []string{"milk low", "cheese expired", "butter low"}},
		{Category: "Hardware", Alerts: []string{"rope out", "nails low"}},
	}
	if diff := cmp.Diff(want, b.Groups()); diff != "" {
		t.Errorf("Groups() mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchKeepsFirstSeenOrder(t *testing.T) {
	b := NewBatch()
	for _, cat := range []string{"C", "A", "B", "A", "C"} {
		b.Add(cat, "x")
	}

	var got []string
	for _, g := range b.Groups() {
		got = append(got, g.Category)
	}
	want := []string{"C", "A", "B"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("category order mismatch (-want +got):\n%s", diff)
	}
}
