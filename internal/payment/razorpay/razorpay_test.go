package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/foliodesk/internal/constants"
	"github.com/foliodesk/internal/models"
)

func testConfig() *Config {
	return &Config{
		KeyID:      "rzp_test_key",
		KeySecret:  "rzp_test_secret",
		BrandName:  "FolioDesk",
		ThemeColor: "#1a73e8",
		Currency:   "INR",
	}
}

func sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(testConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cfg := testConfig()
	cfg.KeySecret = ""
	if !errors.Is(ValidateConfig(cfg), ErrConfigInvalid) {
		t.Fatalf("missing secret must be invalid")
	}
}

func TestBuildCheckoutOptions(t *testing.T) {
	handle := &models.PaymentHandle{
		Kind:     constants.CheckoutKindOrder,
		OrderID:  "order_123",
		Amount:   models.NewMoneyFromInt(300),
		Currency: "inr",
	}
	options, err := BuildCheckoutOptions(testConfig(), handle, Prefill{Name: "测试用户"})
	if err != nil {
		t.Fatalf("BuildCheckoutOptions: %v", err)
	}
	if options.Key != "rzp_test_key" || options.OrderID != "order_123" {
		t.Fatalf("unexpected options: %+v", options)
	}
	if options.Currency != "INR" {
		t.Fatalf("currency must be upper-cased, got %q", options.Currency)
	}
	if options.Prefill.Name != "测试用户" {
		t.Fatalf("prefill lost: %+v", options.Prefill)
	}
}

func TestBuildCheckoutOptionsRejectsEmptyHandle(t *testing.T) {
	_, err := BuildCheckoutOptions(testConfig(), &models.PaymentHandle{}, Prefill{})
	if !errors.Is(err, ErrHandleInvalid) {
		t.Fatalf("expected ErrHandleInvalid, got %v", err)
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	cfg := testConfig()
	good := sign(cfg.KeySecret, "order_123|pay_789")
	if err := VerifyPaymentSignature(cfg, "order_123", "pay_789", good); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := VerifyPaymentSignature(cfg, "order_123", "pay_789", "deadbeef"); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("bad signature must fail, got %v", err)
	}
	if err := VerifyPaymentSignature(cfg, "", "pay_789", good); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("missing order id must fail, got %v", err)
	}
}

func TestVerifySubscriptionSignature(t *testing.T) {
	cfg := testConfig()
	good := sign(cfg.KeySecret, "pay_789|sub_456")
	if err := VerifySubscriptionSignature(cfg, "sub_456", "pay_789", good); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := VerifySubscriptionSignature(cfg, "sub_456", "pay_789", sign(cfg.KeySecret, "sub_456|pay_789")); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("swapped message order must fail")
	}
}
