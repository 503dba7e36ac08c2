package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Subscription 服务端订阅记录
// 上游历史接口的产品引用字段不统一：productId 可能是字符串或对象，
// 旧数据还会落在 portfolio 字段，解码时统一收敛到 ProductRef
type Subscription struct {
	ID                string     `json:"id"`
	ProductType       string     `json:"productType"`
	ProductRef        string     `json:"-"`
	PlanType          string     `json:"planType"`
	IsActive          bool       `json:"isActive"`
	SubscriptionKind  string     `json:"subscriptionType"`
	EmandateID        string     `json:"eMandateId,omitempty"`
	BundleCategory    string     `json:"category,omitempty"`
	ExpiryDate        *time.Time `json:"expiryDate,omitempty"`
	CommitmentEndDate *time.Time `json:"commitmentEndDate,omitempty"`
}

type subscriptionWire struct {
	ID                string          `json:"id"`
	MongoID           string          `json:"_id"`
	ProductType       string          `json:"productType"`
	ProductID         json.RawMessage `json:"productId"`
	Portfolio         json.RawMessage `json:"portfolio"`
	PlanType          string          `json:"planType"`
	IsActive          bool            `json:"isActive"`
	SubscriptionKind  string          `json:"subscriptionType"`
	EmandateID        string          `json:"eMandateId"`
	BundleCategory    string          `json:"category"`
	ExpiryDate        *time.Time      `json:"expiryDate"`
	CommitmentEndDate *time.Time      `json:"commitmentEndDate"`
}

// UnmarshalJSON 解码订阅记录并归一化产品引用
func (s *Subscription) UnmarshalJSON(data []byte) error {
	var wire subscriptionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.ID = wire.ID
	if s.ID == "" {
		s.ID = wire.MongoID
	}
	s.ProductType = strings.TrimSpace(wire.ProductType)
	s.PlanType = strings.TrimSpace(wire.PlanType)
	s.IsActive = wire.IsActive
	s.SubscriptionKind = strings.TrimSpace(wire.SubscriptionKind)
	s.EmandateID = strings.TrimSpace(wire.EmandateID)
	s.BundleCategory = strings.ToLower(strings.TrimSpace(wire.BundleCategory))
	s.ExpiryDate = wire.ExpiryDate
	s.CommitmentEndDate = wire.CommitmentEndDate

	s.ProductRef = decodeProductRef(wire.ProductID)
	if s.ProductRef == "" {
		s.ProductRef = decodeProductRef(wire.Portfolio)
	}
	return nil
}

// decodeProductRef 从字符串或对象形式的引用中提取 ID
func decodeProductRef(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString)
	}
	var asObject struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		if strings.TrimSpace(asObject.ID) != "" {
			return strings.TrimSpace(asObject.ID)
		}
		return strings.TrimSpace(asObject.MongoID)
	}
	return ""
}

// Bundle 组合套餐
type Bundle struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	MonthlyPrice   Money  `json:"monthlyPrice"`
	QuarterlyPrice Money  `json:"quarterlyPrice"`
	YearlyPrice    Money  `json:"yearlyPrice"`
}
