package models

import (
	"encoding/json"
	"testing"
)

func TestMoneyMarshalFixedTwoDecimals(t *testing.T) {
	data, err := json.Marshal(NewMoneyFromInt(300))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"300.00"` {
		t.Fatalf("expected \"300.00\", got %s", data)
	}
}

func TestMoneyUnmarshalFlexibleForms(t *testing.T) {
	cases := map[string]string{
		`"299.99"`: "299.99",
		`299.991`:  "299.99",
		`300`:      "300",
		`null`:     "0",
		`""`:       "0",
	}
	for input, want := range cases {
		var m Money
		if err := json.Unmarshal([]byte(input), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", input, err)
		}
		if m.String() != want {
			t.Fatalf("unmarshal %s = %s, want %s", input, m.String(), want)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	total := NewMoneyFromInt(100).MulInt(3).AddMoney(NewMoneyFromInt(50))
	if total.String() != "350" {
		t.Fatalf("expected 350, got %s", total.String())
	}
	if !(Money{}).IsZero() {
		t.Fatalf("zero value must be zero")
	}
}
