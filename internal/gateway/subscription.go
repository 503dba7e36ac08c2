package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/foliodesk/internal/constants"
	"github.com/foliodesk/internal/models"
)

// ErrSubscriptionNotReady 委托核验时订阅尚未在上游落库
// 这是已知的传播竞态，调用方应退避重试而不是立即报错
var ErrSubscriptionNotReady = errors.New("no matching subscription found yet")

// SubscriptionGateway 订阅与下单接口
type SubscriptionGateway struct {
	client *Client
}

// NewSubscriptionGateway 创建订阅网关
func NewSubscriptionGateway(client *Client) *SubscriptionGateway {
	return &SubscriptionGateway{client: client}
}

// groupedSubscriptionsWire 订阅列表的对象形式响应
type groupedSubscriptionsWire struct {
	BundleSubscriptions     []models.Subscription `json:"bundleSubscriptions"`
	IndividualSubscriptions []models.Subscription `json:"individualSubscriptions"`
}

// ListActive 拉取活跃订阅
// 上游存在两种响应形态：纯数组，或按组合/独立分组的对象，在此统一归一化
func (g *SubscriptionGateway) ListActive(ctx context.Context, token string) ([]models.Subscription, error) {
	body, err := g.client.doJSON(ctx, http.MethodGet, "/user/subscriptions", token, nil)
	if err != nil {
		return nil, err
	}
	return normalizeSubscriptionList(unwrapData(body))
}

func normalizeSubscriptionList(raw json.RawMessage) ([]models.Subscription, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []models.Subscription
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: decode subscription array failed", ErrResponseInvalid)
		}
		return filterActive(list), nil
	}

	var grouped groupedSubscriptionsWire
	if err := json.Unmarshal(raw, &grouped); err != nil {
		return nil, fmt.Errorf("%w: decode subscription object failed", ErrResponseInvalid)
	}
	merged := make([]models.Subscription, 0, len(grouped.BundleSubscriptions)+len(grouped.IndividualSubscriptions))
	merged = append(merged, grouped.BundleSubscriptions...)
	merged = append(merged, grouped.IndividualSubscriptions...)
	return filterActive(merged), nil
}

func filterActive(list []models.Subscription) []models.Subscription {
	active := make([]models.Subscription, 0, len(list))
	for _, sub := range list {
		if sub.IsActive {
			active = append(active, sub)
		}
	}
	return active
}

// CreateOrderInput 创建一次性订单输入
type CreateOrderInput struct {
	Items    []AddInput   `json:"items,omitempty"`
	PlanType string       `json:"planType,omitempty"`
	Amount   models.Money `json:"amount"`
	Currency string       `json:"currency"`
}

type paymentHandleWire struct {
	OrderID        string       `json:"orderId"`
	SubscriptionID string       `json:"subscriptionId"`
	Amount         models.Money `json:"amount"`
	Currency       string       `json:"currency"`
	PlanType       string       `json:"planType"`
}

// CreateOrder 创建一次性订单
func (g *SubscriptionGateway) CreateOrder(ctx context.Context, token string, input CreateOrderInput) (*models.PaymentHandle, error) {
	body, err := g.client.doJSON(ctx, http.MethodPost, "/subscriptions/order", token, input)
	if err != nil {
		return nil, err
	}
	handle, err := normalizePaymentHandle(unwrapData(body), constants.CheckoutKindOrder)
	if err != nil {
		return nil, err
	}
	if handle.OrderID == "" {
		return nil, fmt.Errorf("%w: order id missing", ErrResponseInvalid)
	}
	return handle, nil
}

// CreateEmandateInput 创建委托扣款授权输入
type CreateEmandateInput struct {
	Items    []AddInput   `json:"items,omitempty"`
	PlanType string       `json:"planType,omitempty"`
	Period   string       `json:"subscriptionPeriod"`
	Amount   models.Money `json:"amount"`
	Currency string       `json:"currency"`
}

// CreateEmandate 创建委托扣款授权
func (g *SubscriptionGateway) CreateEmandate(ctx context.Context, token string, input CreateEmandateInput) (*models.PaymentHandle, error) {
	body, err := g.client.doJSON(ctx, http.MethodPost, "/subscriptions/emandate", token, input)
	if err != nil {
		return nil, err
	}
	handle, err := normalizePaymentHandle(unwrapData(body), constants.CheckoutKindEmandate)
	if err != nil {
		return nil, err
	}
	if handle.SubscriptionID == "" {
		return nil, fmt.Errorf("%w: subscription id missing", ErrResponseInvalid)
	}
	return handle, nil
}

func normalizePaymentHandle(raw json.RawMessage, kind string) (*models.PaymentHandle, error) {
	var wire paymentHandleWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode payment handle failed", ErrResponseInvalid)
	}
	return &models.PaymentHandle{
		Kind:           kind,
		OrderID:        strings.TrimSpace(wire.OrderID),
		SubscriptionID: strings.TrimSpace(wire.SubscriptionID),
		Amount:         wire.Amount,
		Currency:       strings.TrimSpace(wire.Currency),
		PlanType:       strings.TrimSpace(wire.PlanType),
	}, nil
}

// VerifyOrderInput 一次性订单核验输入
type VerifyOrderInput struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// VerifyOrder 核验一次性订单支付
func (g *SubscriptionGateway) VerifyOrder(ctx context.Context, token string, input VerifyOrderInput) error {
	_, err := g.client.doJSON(ctx, http.MethodPost, "/subscriptions/verify", token, input)
	return err
}

// VerifyEmandateInput 委托扣款核验输入
type VerifyEmandateInput struct {
	SubscriptionID string `json:"subscriptionId"`
	PaymentID      string `json:"paymentId"`
	Signature      string `json:"signature"`
}

// VerifyEmandate 核验委托扣款授权
// 上游落库存在竞态，"no matching subscription" 映射为 ErrSubscriptionNotReady
func (g *SubscriptionGateway) VerifyEmandate(ctx context.Context, token string, input VerifyEmandateInput) error {
	_, err := g.client.doJSON(ctx, http.MethodPost, "/subscriptions/emandate/verify", token, input)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "no matching subscription") {
		return fmt.Errorf("%w: %v", ErrSubscriptionNotReady, err)
	}
	return err
}
