package domain

import "testing"

func TestDepthSnapshotTopOfBook(t *testing.T) {
	d := DepthSnapshot{
		Bids: []Level{{Price: dec("100"), Qty: dec("1")}},
		Asks: []Level{{Price: dec("101"), Qty: dec("1")}},
	}
	bid, ask, ok := d.TopOfBook()
	if !ok || !bid.Equal(dec("100")) || !ask.Equal(dec("101")) {
		t.Errorf("TopOfBook() = %s, %s, %v", bid, ask, ok)
	}
}

func TestDepthSnapshotTopOfBookMissingSide(t *testing.T) {
	d := DepthSnapshot{Bids: []Level{{Price: dec("100"), Qty: dec("1")}}}
	if _, _, ok := d.TopOfBook(); ok {
		t.Error("expected ok=false with no asks")
	}
}

func TestSumSizes(t *testing.T) {
	levels := []Level{
		{Qty: dec("1")}, {Qty: dec("2")}, {Qty: dec("3")},
	}
	if got := SumSizes(levels, 2); !got.Equal(dec("3")) {
		t.Errorf("SumSizes(2) = %s, want 3", got)
	}
	if got := SumSizes(levels, 10); !got.Equal(dec("6")) {
		t.Errorf("SumSizes(10) = %s, want 6", got)
	}
}
