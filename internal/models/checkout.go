package models

// PaymentHandle 订单或委托扣款的支付句柄
// 只在创建与核验之间短暂存在
type PaymentHandle struct {
	Kind           string `json:"kind"`
	OrderID        string `json:"order_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Amount         Money  `json:"amount"`
	Currency       string `json:"currency"`
	PlanType       string `json:"plan_type,omitempty"`
}

// Reference 返回句柄的网关引用（订单号或委托订阅号）
func (h *PaymentHandle) Reference() string {
	if h == nil {
		return ""
	}
	if h.SubscriptionID != "" {
		return h.SubscriptionID
	}
	return h.OrderID
}
