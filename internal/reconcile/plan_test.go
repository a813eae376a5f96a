package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestMakeOrderPlanMatchesStableBook(t *testing.T) {
	open := []domain.OpenOrder{
		{OrderID: "1", Side: domain.SideBuy, Price: d("100"), OrigQty: d("0.01")},
		{OrderID: "2", Side: domain.SideSell, Price: d("101"), OrigQty: d("0.01")},
	}
	desired := []domain.DesiredOrder{
		{Side: domain.SideBuy, Price: "100", Amount: d("0.01")},
		{Side: domain.SideSell, Price: "101", Amount: d("0.01")},
	}
	plan := MakeOrderPlan(open, desired, d("0.1"), d("0.001"))
	if len(plan.ToCancel) != 0 || len(plan.ToPlace) != 0 {
		t.Errorf("expected empty diff on a stable book, got toCancel=%d toPlace=%d", len(plan.ToCancel), len(plan.ToPlace))
	}
}

func TestMakeOrderPlanUnmatchedOpenIsCancelled(t *testing.T) {
	open := []domain.OpenOrder{
		{OrderID: "1", Side: domain.SideBuy, Price: d("99"), OrigQty: d("0.01")},
	}
	desired := []domain.DesiredOrder{
		{Side: domain.SideBuy, Price: "100", Amount: d("0.01")},
	}
	plan := MakeOrderPlan(open, desired, d("0.1"), d("0.001"))
	if len(plan.ToCancel) != 1 || plan.ToCancel[0].OrderID != "1" {
		t.Errorf("expected order 1 cancelled, got %+v", plan.ToCancel)
	}
	if len(plan.ToPlace) != 1 {
		t.Errorf("expected the new desired order placed, got %+v", plan.ToPlace)
	}
}

func TestMakeOrderPlanQtyStepTolerance(t *testing.T) {
	open := []domain.OpenOrder{
		{OrderID: "1", Side: domain.SideBuy, Price: d("100"), OrigQty: d("0.0102")},
	}
	desired := []domain.DesiredOrder{
		{Side: domain.SideBuy, Price: "100", Amount: d("0.01")},
	}
	plan := MakeOrderPlan(open, desired, d("0.1"), d("0.001"))
	if len(plan.ToCancel) != 0 || len(plan.ToPlace) != 0 {
		t.Errorf("expected match within qtyStep tolerance, got toCancel=%d toPlace=%d", len(plan.ToCancel), len(plan.ToPlace))
	}
}

func TestMakeOrderPlanReduceOnlyIsPartOfKey(t *testing.T) {
	open := []domain.OpenOrder{
		{OrderID: "1", Side: domain.SideSell, Price: d("101"), OrigQty: d("0.01"), ReduceOnly: false},
	}
	desired := []domain.DesiredOrder{
		{Side: domain.SideSell, Price: "101", Amount: d("0.01"), ReduceOnly: true},
	}
	plan := MakeOrderPlan(open, desired, d("0.1"), d("0.001"))
	if len(plan.ToCancel) != 1 {
		t.Errorf("expected the non-reduce-only order cancelled since reduceOnly differs, got %+v", plan.ToCancel)
	}
	if len(plan.ToPlace) != 1 {
		t.Errorf("expected the reduce-only desired order placed, got %+v", plan.ToPlace)
	}
}

func TestMakeOrderPlanCancelOrderingOldestFirst(t *testing.T) {
	now := time.Now()
	open := []domain.OpenOrder{
		{OrderID: "newer", Side: domain.SideBuy, Price: d("90"), OrigQty: d("0.01"), UpdateTime: now},
		{OrderID: "older", Side: domain.SideBuy, Price: d("91"), OrigQty: d("0.01"), UpdateTime: now.Add(-time.Minute)},
	}
	plan := MakeOrderPlan(open, nil, d("0.1"), d("0.001"))
	if len(plan.ToCancel) != 2 || plan.ToCancel[0].OrderID != "older" {
		t.Errorf("expected oldest-first cancel ordering, got %+v", plan.ToCancel)
	}
}

func TestMakeOrderPlanIdempotentOnDiffApplication(t *testing.T) {
	desired := []domain.DesiredOrder{
		{Side: domain.SideBuy, Price: "100", Amount: d("0.01")},
	}
	first := MakeOrderPlan(nil, desired, d("0.1"), d("0.001"))
	if len(first.ToPlace) != 1 {
		t.Fatalf("expected one order to place, got %d", len(first.ToPlace))
	}

	// Simulate the placed order coming back on the next orders snapshot.
	nowOpen := []domain.OpenOrder{
		{OrderID: "placed-1", Side: domain.SideBuy, Price: d("100"), OrigQty: d("0.01")},
	}
	second := MakeOrderPlan(nowOpen, desired, d("0.1"), d("0.001"))
	if len(second.ToCancel) != 0 || len(second.ToPlace) != 0 {
		t.Errorf("expected no-op plan on the second pass, got toCancel=%d toPlace=%d", len(second.ToCancel), len(second.ToPlace))
	}
}
