package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/foliodesk/internal/models"
)

var (
	ErrConfigInvalid    = errors.New("razorpay config invalid")
	ErrSignatureInvalid = errors.New("razorpay signature invalid")
	ErrHandleInvalid    = errors.New("razorpay payment handle invalid")
)

// Config 支付挂件配置
type Config struct {
	KeyID      string `json:"key_id"`
	KeySecret  string `json:"key_secret"`
	BrandName  string `json:"brand_name"`
	ThemeColor string `json:"theme_color"`
	Currency   string `json:"currency"`
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.KeyID) == "" {
		return fmt.Errorf("%w: key_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.KeySecret) == "" {
		return fmt.Errorf("%w: key_secret is required", ErrConfigInvalid)
	}
	return nil
}

// Prefill 挂件预填的客户身份
type Prefill struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"contact,omitempty"`
}

// CheckoutOptions 浏览器端挂件的打开参数
type CheckoutOptions struct {
	Key            string       `json:"key"`
	Amount         models.Money `json:"amount"`
	Currency       string       `json:"currency"`
	Name           string       `json:"name"`
	OrderID        string       `json:"order_id,omitempty"`
	SubscriptionID string       `json:"subscription_id,omitempty"`
	Prefill        Prefill      `json:"prefill"`
	Theme          ThemeOptions `json:"theme"`
}

// ThemeOptions 挂件主题
type ThemeOptions struct {
	Color string `json:"color"`
}

// BuildCheckoutOptions 由支付句柄构建挂件打开参数
func BuildCheckoutOptions(cfg *Config, handle *models.PaymentHandle, prefill Prefill) (*CheckoutOptions, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if handle == nil || handle.Reference() == "" {
		return nil, fmt.Errorf("%w: missing order or subscription id", ErrHandleInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(handle.Currency))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	}
	return &CheckoutOptions{
		Key:            strings.TrimSpace(cfg.KeyID),
		Amount:         handle.Amount,
		Currency:       currency,
		Name:           strings.TrimSpace(cfg.BrandName),
		OrderID:        handle.OrderID,
		SubscriptionID: handle.SubscriptionID,
		Prefill:        prefill,
		Theme:          ThemeOptions{Color: strings.TrimSpace(cfg.ThemeColor)},
	}, nil
}

// VerifyPaymentSignature 校验一次性订单回调签名
// 签名串为 order_id|payment_id 的 HMAC-SHA256
func VerifyPaymentSignature(cfg *Config, orderID, paymentID, signature string) error {
	return verifySignature(cfg, orderID+"|"+paymentID, signature, orderID, paymentID)
}

// VerifySubscriptionSignature 校验委托扣款回调签名
// 签名串为 payment_id|subscription_id 的 HMAC-SHA256
func VerifySubscriptionSignature(cfg *Config, subscriptionID, paymentID, signature string) error {
	return verifySignature(cfg, paymentID+"|"+subscriptionID, signature, subscriptionID, paymentID)
}

func verifySignature(cfg *Config, message, signature string, parts ...string) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return fmt.Errorf("%w: signature input incomplete", ErrSignatureInvalid)
		}
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: signature is empty", ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(cfg.KeySecret))
	mac.Write([]byte(message))
	expected := hex.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) != 1 {
		return ErrSignatureInvalid
	}
	return nil
}
