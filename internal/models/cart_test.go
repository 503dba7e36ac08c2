package models

import (
	"testing"

	"github.com/foliodesk/internal/constants"
)

func bundleItem(ref string, quantity int) CartItem {
	return CartItem{
		ItemID:        "item-" + ref,
		ProductRef:    ref,
		ItemType:      constants.ItemTypeBundle,
		Quantity:      quantity,
		BillingPeriod: constants.BillingPeriodMonthly,
	}
}

func TestUpsertItemAccumulatesAndOverwritesMetadata(t *testing.T) {
	cart := &Cart{}
	cart.UpsertItem(bundleItem("b-1", 1))

	update := bundleItem("b-1", 2)
	update.BillingPeriod = constants.BillingPeriodYearly
	cart.UpsertItem(update)

	if len(cart.Items) != 1 {
		t.Fatalf("expected a single item, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 3 {
		t.Fatalf("quantity should accumulate, got %d", cart.Items[0].Quantity)
	}
	if cart.Items[0].BillingPeriod != constants.BillingPeriodYearly {
		t.Fatalf("metadata should be last-write-wins, got %q", cart.Items[0].BillingPeriod)
	}
}

func TestSetQuantityZeroRemoves(t *testing.T) {
	cart := &Cart{Items: []CartItem{bundleItem("b-1", 2), bundleItem("b-2", 1)}}
	cart.SetQuantity("b-1", 0)
	if len(cart.Items) != 1 || cart.Items[0].ProductRef != "b-2" {
		t.Fatalf("zero quantity must remove, got %+v", cart.Items)
	}
}

func TestNormalizeDropsInvalidAndDedupes(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		bundleItem("b-1", 2),
		{ProductRef: "", ItemType: constants.ItemTypeBundle, Quantity: 1},
		{ProductRef: "b-2", ItemType: "widget", Quantity: 1},
		bundleItem("b-1", 3),
		{ProductRef: "b-3", ItemType: constants.ItemTypePortfolio, Quantity: 0},
	}}
	if !cart.Normalize() {
		t.Fatalf("normalize should succeed")
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 item after normalize, got %+v", cart.Items)
	}
	if cart.Items[0].Quantity != 5 {
		t.Fatalf("duplicate quantities should merge, got %d", cart.Items[0].Quantity)
	}
}

func TestCloneIsDeep(t *testing.T) {
	cart := &Cart{Items: []CartItem{bundleItem("b-1", 2)}}
	clone := cart.Clone()
	clone.Items[0].Quantity = 9
	if cart.Items[0].Quantity != 2 {
		t.Fatalf("clone must not alias backing array")
	}

	var nilCart *Cart
	if !nilCart.Clone().IsEmpty() {
		t.Fatalf("nil clone must be empty")
	}
}

func TestPriceTableForPeriod(t *testing.T) {
	prices := PriceTable{
		Monthly:   NewMoneyFromInt(100),
		Quarterly: NewMoneyFromInt(270),
		Yearly:    NewMoneyFromInt(960),
	}
	if price, ok := prices.ForPeriod(constants.BillingPeriodQuarterly); !ok || price.String() != "270" {
		t.Fatalf("quarterly price wrong: %v %v", price, ok)
	}
	if _, ok := prices.ForPeriod("weekly"); ok {
		t.Fatalf("unknown period must not resolve")
	}
}
