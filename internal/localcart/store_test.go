package localcart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/foliodesk/internal/constants"
)

func bundleInput(ref string, quantity int) AddItemInput {
	return AddItemInput{
		ProductRef:    ref,
		Quantity:      quantity,
		BillingPeriod: constants.BillingPeriodMonthly,
		ItemType:      constants.ItemTypeBundle,
		PlanCategory:  constants.PlanCategoryBasic,
	}
}

func TestAddItemPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	store := NewStore(dir, 0)
	cart := store.AddItem("dev-1", bundleInput("bundle-9", 2))
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart: %+v", cart.Items)
	}
	if cart.Items[0].ItemID == "" {
		t.Fatalf("item id must be assigned")
	}

	// 重新打开存储，数据应该还在
	reopened := NewStore(dir, 0)
	cart = reopened.Read("dev-1")
	if len(cart.Items) != 1 || cart.Items[0].ProductRef != "bundle-9" {
		t.Fatalf("cart not persisted: %+v", cart.Items)
	}
}

func TestAddItemAccumulatesQuantity(t *testing.T) {
	store := NewStore(t.TempDir(), 0)
	store.AddItem("dev-1", bundleInput("bundle-9", 1))
	cart := store.AddItem("dev-1", bundleInput("bundle-9", 2))
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("quantities should accumulate: %+v", cart.Items)
	}
}

func TestAddItemIgnoresInvalidInput(t *testing.T) {
	store := NewStore(t.TempDir(), 0)
	cart := store.AddItem("dev-1", bundleInput("", 1))
	if !cart.IsEmpty() {
		t.Fatalf("blank ref must be ignored: %+v", cart.Items)
	}
	cart = store.AddItem("dev-1", bundleInput("bundle-9", 0))
	if !cart.IsEmpty() {
		t.Fatalf("non-positive quantity must be ignored: %+v", cart.Items)
	}
}

func TestRemoveAndSetQuantity(t *testing.T) {
	store := NewStore(t.TempDir(), 0)
	store.AddItem("dev-1", bundleInput("bundle-9", 2))
	store.AddItem("dev-1", bundleInput("bundle-7", 1))

	cart := store.SetQuantity("dev-1", "bundle-9", 5)
	if cart.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %+v", cart.Items)
	}

	cart = store.SetQuantity("dev-1", "bundle-9", 0)
	if len(cart.Items) != 1 || cart.Items[0].ProductRef != "bundle-7" {
		t.Fatalf("zero quantity must remove the item: %+v", cart.Items)
	}

	cart = store.RemoveItem("dev-1", "bundle-7")
	if !cart.IsEmpty() {
		t.Fatalf("expected empty cart: %+v", cart.Items)
	}
}

func TestClearRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 0)
	store.AddItem("dev-1", bundleInput("bundle-9", 1))

	store.Clear("dev-1")
	if _, err := os.Stat(filepath.Join(dir, "dev-1.json")); !os.IsNotExist(err) {
		t.Fatalf("primary file should be removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dev-1.bak.json")); !os.IsNotExist(err) {
		t.Fatalf("backup file should be removed, stat err=%v", err)
	}
	if !store.Read("dev-1").IsEmpty() {
		t.Fatalf("cart should be empty after clear")
	}
}

func TestReadRecoversFromBackup(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 0)
	store.AddItem("dev-1", bundleInput("bundle-9", 2))

	// 破坏主文件，备份应接管并回写主文件
	primary := filepath.Join(dir, "dev-1.json")
	if err := os.WriteFile(primary, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt primary: %v", err)
	}

	cart := store.Read("dev-1")
	if len(cart.Items) != 1 || cart.Items[0].ProductRef != "bundle-9" {
		t.Fatalf("backup recovery failed: %+v", cart.Items)
	}

	data, err := os.ReadFile(primary)
	if err != nil || len(data) == 0 || data[0] != '{' {
		t.Fatalf("primary not rewritten after recovery: err=%v data=%q", err, data)
	}
}

func TestReadCorruptBothFilesYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 0)
	store.AddItem("dev-1", bundleInput("bundle-9", 2))

	for _, name := range []string{"dev-1.json", "dev-1.bak.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("garbage"), 0o644); err != nil {
			t.Fatalf("corrupt %s: %v", name, err)
		}
	}

	if !store.Read("dev-1").IsEmpty() {
		t.Fatalf("corrupt storage must reset to empty cart")
	}
}

func TestBackupSkippedWhenPayloadTooLarge(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 8) // 远小于任何序列化结果
	store.AddItem("dev-1", bundleInput("bundle-9", 1))

	if _, err := os.Stat(filepath.Join(dir, "dev-1.json")); err != nil {
		t.Fatalf("primary must always be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dev-1.bak.json")); !os.IsNotExist(err) {
		t.Fatalf("oversized payload must skip backup, stat err=%v", err)
	}
}

func TestDegradedModeKeepsWorkingInMemory(t *testing.T) {
	store := NewStore("", 0)
	if !store.Degraded() {
		t.Fatalf("blank dir must degrade to memory mode")
	}

	cart := store.AddItem("dev-1", bundleInput("bundle-9", 2))
	if len(cart.Items) != 1 {
		t.Fatalf("degraded mode must still accept mutations: %+v", cart.Items)
	}
	cart = store.Read("dev-1")
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("degraded mode lost state: %+v", cart.Items)
	}
}

func TestSanitizeDeviceID(t *testing.T) {
	cases := map[string]string{
		"dev-1":          "dev-1",
		"../../etc/pass": "etcpass",
		"  ":             "device",
		"a b/c":          "abc",
	}
	for input, want := range cases {
		if got := sanitizeDeviceID(input); got != want {
			t.Fatalf("sanitizeDeviceID(%q) = %q, want %q", input, got, want)
		}
	}
}
