package models

import (
	"strings"
	"time"

	"github.com/foliodesk/internal/constants"
)

// PriceTable 各计费周期的价格快照
type PriceTable struct {
	Monthly   Money `json:"monthly"`
	Quarterly Money `json:"quarterly"`
	Yearly    Money `json:"yearly"`
}

// ForPeriod 取指定计费周期的价格
func (p PriceTable) ForPeriod(period string) (Money, bool) {
	switch period {
	case constants.BillingPeriodMonthly:
		return p.Monthly, true
	case constants.BillingPeriodQuarterly:
		return p.Quarterly, true
	case constants.BillingPeriodYearly:
		return p.Yearly, true
	}
	return Money{}, false
}

// ItemSnapshot 加入购物车时的商品快照
// 仅用于离线展示，结账前不会与服务端重新校验
type ItemSnapshot struct {
	Name        string     `json:"name"`
	Prices      PriceTable `json:"prices"`
	Description string     `json:"description,omitempty"`
}

// CartItem 购物车项
type CartItem struct {
	ItemID        string       `json:"item_id"`
	ProductRef    string       `json:"product_ref"`
	ItemType      string       `json:"item_type"`
	Quantity      int          `json:"quantity"`
	BillingPeriod string       `json:"billing_period"`
	PlanCategory  string       `json:"plan_category,omitempty"`
	Snapshot      ItemSnapshot `json:"snapshot"`
	AddedAt       time.Time    `json:"added_at"`
}

// Cart 购物车聚合
// items 以 (product_ref, item_type) 唯一
type Cart struct {
	Items       []CartItem `json:"items"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Find 按 (product_ref, item_type) 查找购物车项
func (c *Cart) Find(productRef, itemType string) (int, bool) {
	for i := range c.Items {
		if c.Items[i].ProductRef == productRef && c.Items[i].ItemType == itemType {
			return i, true
		}
	}
	return -1, false
}

// UpsertItem 添加或叠加购物车项
// 已存在时数量累加，快照与周期等元数据按最新值覆盖
func (c *Cart) UpsertItem(item CartItem) {
	if item.Quantity <= 0 {
		return
	}
	if idx, ok := c.Find(item.ProductRef, item.ItemType); ok {
		existing := &c.Items[idx]
		existing.Quantity += item.Quantity
		existing.BillingPeriod = item.BillingPeriod
		existing.PlanCategory = item.PlanCategory
		existing.Snapshot = item.Snapshot
		c.LastUpdated = time.Now()
		return
	}
	c.Items = append(c.Items, item)
	c.LastUpdated = time.Now()
}

// RemoveItem 删除引用匹配的购物车项
// 组合商品与独立组合共用引用字段，任一匹配即删除；不存在时为空操作
func (c *Cart) RemoveItem(productRef string) bool {
	removed := false
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductRef == productRef {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	if removed {
		c.LastUpdated = time.Now()
	}
	return removed
}

// SetQuantity 覆盖购物车项数量，小于等于 0 时等价于删除
func (c *Cart) SetQuantity(productRef string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productRef)
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductRef == productRef {
			c.Items[i].Quantity = quantity
			c.LastUpdated = time.Now()
			return
		}
	}
}

// Normalize 清理非法购物车项并按唯一键去重
// 返回 false 表示结构本身不可用（调用方应视为损坏）
func (c *Cart) Normalize() bool {
	if c == nil {
		return false
	}
	seen := make(map[string]int, len(c.Items))
	kept := c.Items[:0]
	for _, item := range c.Items {
		if strings.TrimSpace(item.ProductRef) == "" || item.Quantity <= 0 {
			continue
		}
		if item.ItemType != constants.ItemTypePortfolio && item.ItemType != constants.ItemTypeBundle {
			continue
		}
		key := item.ProductRef + "|" + item.ItemType
		if idx, ok := seen[key]; ok {
			kept[idx].Quantity += item.Quantity
			continue
		}
		seen[key] = len(kept)
		kept = append(kept, item)
	}
	c.Items = kept
	return true
}

// IsEmpty 判断购物车是否为空
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Clone 深拷贝购物车
func (c *Cart) Clone() *Cart {
	if c == nil {
		return &Cart{Items: []CartItem{}}
	}
	clone := &Cart{
		Items:       make([]CartItem, len(c.Items)),
		LastUpdated: c.LastUpdated,
	}
	copy(clone.Items, c.Items)
	return clone
}
