package models

import (
	"encoding/json"
	"testing"
)

func TestSubscriptionUnmarshalFlexibleProductRef(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"string id", `{"id":"s1","productType":"bundle","productId":"b-1","isActive":true}`, "b-1"},
		{"object id", `{"id":"s1","productType":"bundle","productId":{"id":"b-2"},"isActive":true}`, "b-2"},
		{"mongo object id", `{"id":"s1","productType":"bundle","productId":{"_id":"b-3"},"isActive":true}`, "b-3"},
		{"legacy portfolio field", `{"id":"s1","productType":"portfolio","portfolio":{"_id":"pf-4"},"isActive":true}`, "pf-4"},
		{"missing ref", `{"id":"s1","productType":"bundle","isActive":true}`, ""},
	}
	for _, tc := range cases {
		var sub Subscription
		if err := json.Unmarshal([]byte(tc.body), &sub); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.name, err)
		}
		if sub.ProductRef != tc.want {
			t.Fatalf("%s: ProductRef = %q, want %q", tc.name, sub.ProductRef, tc.want)
		}
	}
}

func TestSubscriptionUnmarshalFallsBackToMongoID(t *testing.T) {
	var sub Subscription
	body := `{"_id":"mongo-1","productType":"bundle","category":"PREMIUM","isActive":true}`
	if err := json.Unmarshal([]byte(body), &sub); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sub.ID != "mongo-1" {
		t.Fatalf("ID fallback failed: %q", sub.ID)
	}
	if sub.BundleCategory != "premium" {
		t.Fatalf("category must be lower-cased: %q", sub.BundleCategory)
	}
}
