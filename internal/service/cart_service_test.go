package service

import (
	"context"
	"errors"
	"testing"

	"github.com/foliodesk/internal/constants"
	"github.com/foliodesk/internal/gateway"
	"github.com/foliodesk/internal/localcart"
	"github.com/foliodesk/internal/models"
)

// fakeTokens 测试用会话令牌桩
type fakeTokens struct {
	token    string
	expired  bool
	pending  string
	pendErrs error
}

func (f *fakeTokens) GetAccessToken(ctx context.Context, deviceID string) string { return f.token }
func (f *fakeTokens) IsTokenExpired(token string) bool                           { return f.expired }
func (f *fakeTokens) SetPendingEmandate(ctx context.Context, deviceID, subscriptionID string) error {
	f.pending = subscriptionID
	return f.pendErrs
}
func (f *fakeTokens) GetPendingEmandate(ctx context.Context, deviceID string) string {
	return f.pending
}
func (f *fakeTokens) ClearPendingEmandate(ctx context.Context, deviceID string) error {
	f.pending = ""
	return nil
}

// fakeRemoteCart 测试用服务端购物车桩
type fakeRemoteCart struct {
	cart  *models.Cart
	calls []string

	getErr    error
	addErr    error
	removeErr error
	clearErr  error
}

func (f *fakeRemoteCart) Get(ctx context.Context, token string) (*models.Cart, error) {
	f.calls = append(f.calls, "get")
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.cart.Clone(), nil
}

func (f *fakeRemoteCart) Add(ctx context.Context, token string, input gateway.AddInput) error {
	f.calls = append(f.calls, "add:"+input.ProductRef)
	if f.addErr != nil {
		return f.addErr
	}
	for i := range f.cart.Items {
		if f.cart.Items[i].ProductRef == input.ProductRef {
			f.cart.Items[i].Quantity += input.Quantity
			return nil
		}
	}
	f.cart.Items = append(f.cart.Items, models.CartItem{
		ProductRef:    input.ProductRef,
		ItemType:      constants.ItemTypeBundle,
		Quantity:      input.Quantity,
		BillingPeriod: constants.BillingPeriodMonthly,
		PlanCategory:  input.PlanCategory,
	})
	return nil
}

func (f *fakeRemoteCart) Remove(ctx context.Context, token, productRef string) error {
	f.calls = append(f.calls, "remove:"+productRef)
	if f.removeErr != nil {
		return f.removeErr
	}
	f.cart.RemoveItem(productRef)
	return nil
}

func (f *fakeRemoteCart) Clear(ctx context.Context, token string) error {
	f.calls = append(f.calls, "clear")
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cart.Items = nil
	return nil
}

func remoteCartWith(items ...models.CartItem) *fakeRemoteCart {
	return &fakeRemoteCart{cart: &models.Cart{Items: items}}
}

func newCartFixture(t *testing.T, remote *fakeRemoteCart, tokens *fakeTokens) *CartService {
	t.Helper()
	local := localcart.NewStore(t.TempDir(), 65536)
	return NewCartService(remote, local, tokens)
}

func TestAddToCartLocalWhenAnonymous(t *testing.T) {
	remote := remoteCartWith()
	svc := newCartFixture(t, remote, &fakeTokens{})

	cart, err := svc.AddToCart(context.Background(), "dev-1", AddToCartInput{
		ProductRef:    "bundle-9",
		Quantity:      2,
		BillingPeriod: constants.BillingPeriodMonthly,
		ItemType:      constants.ItemTypeBundle,
		PlanCategory:  constants.PlanCategoryBasic,
	})
	if err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected local cart: %+v", cart.Items)
	}
	if len(remote.calls) != 0 {
		t.Fatalf("anonymous add must not touch remote, got %v", remote.calls)
	}
}

func TestAddToCartRejectsInvalidInput(t *testing.T) {
	svc := newCartFixture(t, remoteCartWith(), &fakeTokens{})

	_, err := svc.AddToCart(context.Background(), "dev-1", AddToCartInput{
		ProductRef:    "",
		Quantity:      1,
		BillingPeriod: constants.BillingPeriodMonthly,
		ItemType:      constants.ItemTypeBundle,
	})
	if !errors.Is(err, ErrCartItemInvalid) {
		t.Fatalf("expected ErrCartItemInvalid, got %v", err)
	}

	_, err = svc.AddToCart(context.Background(), "dev-1", AddToCartInput{
		ProductRef:    "p-1",
		Quantity:      1,
		BillingPeriod: "weekly",
		ItemType:      constants.ItemTypePortfolio,
	})
	if !errors.Is(err, ErrBillingPeriodInvalid) {
		t.Fatalf("expected ErrBillingPeriodInvalid, got %v", err)
	}
}

func TestAddToCartRemoteWhenAuthenticated(t *testing.T) {
	remote := remoteCartWith()
	svc := newCartFixture(t, remote, &fakeTokens{token: "tok"})

	cart, err := svc.AddToCart(context.Background(), "dev-1", AddToCartInput{
		ProductRef:    "bundle-9",
		Quantity:      1,
		BillingPeriod: constants.BillingPeriodMonthly,
		ItemType:      constants.ItemTypeBundle,
	})
	if err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected remote cart with 1 item, got %+v", cart.Items)
	}
	if len(remote.calls) == 0 || remote.calls[0] != "add:bundle-9" {
		t.Fatalf("unexpected remote calls: %v", remote.calls)
	}
}

func TestUpdateQuantityIncreaseAddsDelta(t *testing.T) {
	remote := remoteCartWith(models.CartItem{
		ProductRef:    "bundle-9",
		ItemType:      constants.ItemTypeBundle,
		Quantity:      1,
		BillingPeriod: constants.BillingPeriodMonthly,
	})
	svc := newCartFixture(t, remote, &fakeTokens{token: "tok"})

	cart, err := svc.UpdateQuantity(context.Background(), "dev-1", "bundle-9", 3)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if cart.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", cart.Items[0].Quantity)
	}
	for _, call := range remote.calls {
		if call == "remove:bundle-9" {
			t.Fatalf("increase must not remove, calls: %v", remote.calls)
		}
	}
}

func TestUpdateQuantityDecreaseRemovesThenAdds(t *testing.T) {
	remote := remoteCartWith(models.CartItem{
		ProductRef:    "bundle-9",
		ItemType:      constants.ItemTypeBundle,
		Quantity:      3,
		BillingPeriod: constants.BillingPeriodMonthly,
	})
	svc := newCartFixture(t, remote, &fakeTokens{token: "tok"})

	cart, err := svc.UpdateQuantity(context.Background(), "dev-1", "bundle-9", 1)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if cart.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", cart.Items[0].Quantity)
	}

	removeAt, addAt := -1, -1
	for i, call := range remote.calls {
		switch call {
		case "remove:bundle-9":
			removeAt = i
		case "add:bundle-9":
			addAt = i
		}
	}
	if removeAt == -1 || addAt == -1 || removeAt > addAt {
		t.Fatalf("expected remove before add, calls: %v", remote.calls)
	}
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	remote := remoteCartWith(models.CartItem{
		ProductRef:    "bundle-9",
		ItemType:      constants.ItemTypeBundle,
		Quantity:      2,
		BillingPeriod: constants.BillingPeriodMonthly,
	})
	svc := newCartFixture(t, remote, &fakeTokens{token: "tok"})

	cart, err := svc.UpdateQuantity(context.Background(), "dev-1", "bundle-9", 0)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatalf("expected empty cart, got %+v", cart.Items)
	}
}

func TestUpdateQuantityFailureRevertsOptimisticView(t *testing.T) {
	remote := remoteCartWith(models.CartItem{
		ProductRef:    "bundle-9",
		ItemType:      constants.ItemTypeBundle,
		Quantity:      2,
		BillingPeriod: constants.BillingPeriodMonthly,
	})
	remote.addErr = errors.New("upstream down")
	svc := newCartFixture(t, remote, &fakeTokens{token: "tok"})

	_, err := svc.UpdateQuantity(context.Background(), "dev-1", "bundle-9", 5)
	if !errors.Is(err, ErrCartUpdateFailed) {
		t.Fatalf("expected ErrCartUpdateFailed, got %v", err)
	}

	// 失败后有效视图必须回到服务端权威状态
	cart, err := svc.GetEffectiveCart(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("GetEffectiveCart: %v", err)
	}
	if cart.Items[0].Quantity != 2 {
		t.Fatalf("optimistic view leaked after failure: %+v", cart.Items)
	}
}

func TestGetEffectiveCartPicksSourceByAuth(t *testing.T) {
	remote := remoteCartWith(models.CartItem{
		ProductRef:    "remote-item",
		ItemType:      constants.ItemTypeBundle,
		Quantity:      1,
		BillingPeriod: constants.BillingPeriodMonthly,
	})
	tokens := &fakeTokens{}
	svc := newCartFixture(t, remote, tokens)

	if _, err := svc.AddToCart(context.Background(), "dev-1", AddToCartInput{
		ProductRef:    "local-item",
		Quantity:      1,
		BillingPeriod: constants.BillingPeriodYearly,
		ItemType:      constants.ItemTypePortfolio,
	}); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	cart, err := svc.GetEffectiveCart(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("GetEffectiveCart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductRef != "local-item" {
		t.Fatalf("anonymous view should be local, got %+v", cart.Items)
	}

	tokens.token = "tok"
	cart, err = svc.GetEffectiveCart(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("GetEffectiveCart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductRef != "remote-item" {
		t.Fatalf("authenticated view should be remote, got %+v", cart.Items)
	}
}

func TestPushLocalToRemoteClearsLocal(t *testing.T) {
	remote := remoteCartWith()
	tokens := &fakeTokens{}
	svc := newCartFixture(t, remote, tokens)

	if _, err := svc.AddToCart(context.Background(), "dev-1", AddToCartInput{
		ProductRef:    "bundle-9",
		Quantity:      2,
		BillingPeriod: constants.BillingPeriodMonthly,
		ItemType:      constants.ItemTypeBundle,
		PlanCategory:  constants.PlanCategoryPremium,
	}); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	if err := svc.PushLocalToRemote(context.Background(), "dev-1"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("anonymous push must fail, got %v", err)
	}

	tokens.token = "tok"
	if err := svc.PushLocalToRemote(context.Background(), "dev-1"); err != nil {
		t.Fatalf("PushLocalToRemote: %v", err)
	}
	if len(remote.cart.Items) != 1 || remote.cart.Items[0].Quantity != 2 {
		t.Fatalf("remote cart not populated: %+v", remote.cart.Items)
	}

	tokens.token = ""
	cart, err := svc.GetEffectiveCart(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("GetEffectiveCart: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatalf("local cart should be cleared after push, got %+v", cart.Items)
	}
}

func TestConvertToServerCartFormat(t *testing.T) {
	svc := newCartFixture(t, remoteCartWith(), &fakeTokens{})

	if _, err := svc.AddToCart(context.Background(), "dev-1", AddToCartInput{
		ProductRef:    "bundle-9",
		Quantity:      3,
		BillingPeriod: constants.BillingPeriodQuarterly,
		ItemType:      constants.ItemTypeBundle,
		PlanCategory:  constants.PlanCategoryBasic,
	}); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	inputs := svc.ConvertToServerCartFormat("dev-1")
	if len(inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(inputs))
	}
	if inputs[0].ProductRef != "bundle-9" || inputs[0].Quantity != 3 || inputs[0].PlanCategory != constants.PlanCategoryBasic {
		t.Fatalf("unexpected mapping: %+v", inputs[0])
	}
}
