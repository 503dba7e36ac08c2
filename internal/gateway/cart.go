package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/foliodesk/internal/constants"
	"github.com/foliodesk/internal/models"
)

// CartGateway 服务端购物车接口
// 上游只提供增删原语，没有数量更新端点
type CartGateway struct {
	client *Client
}

// NewCartGateway 创建服务端购物车网关
func NewCartGateway(client *Client) *CartGateway {
	return &CartGateway{client: client}
}

// AddInput 添加购物车项输入
type AddInput struct {
	ProductRef   string `json:"productId"`
	Quantity     int    `json:"quantity"`
	PlanCategory string `json:"planCategory,omitempty"`
}

// cartWire 服务端购物车响应
type cartWire struct {
	Items       []cartItemWire `json:"items"`
	LastUpdated *time.Time     `json:"lastUpdated"`
}

type cartItemWire struct {
	ItemID        string            `json:"id"`
	ProductID     json.RawMessage   `json:"productId"`
	ItemType      string            `json:"itemType"`
	Quantity      int               `json:"quantity"`
	BillingPeriod string            `json:"subscriptionType"`
	PlanCategory  string            `json:"planCategory"`
	Name          string            `json:"name"`
	Prices        models.PriceTable `json:"prices"`
	Description   string            `json:"description"`
	AddedAt       *time.Time        `json:"addedAt"`
}

// Get 读取服务端购物车
func (g *CartGateway) Get(ctx context.Context, token string) (*models.Cart, error) {
	body, err := g.client.doJSON(ctx, http.MethodGet, "/cart", token, nil)
	if err != nil {
		return nil, err
	}
	return normalizeCart(unwrapData(body))
}

// Add 添加购物车项
func (g *CartGateway) Add(ctx context.Context, token string, input AddInput) error {
	if strings.TrimSpace(input.ProductRef) == "" || input.Quantity <= 0 {
		return fmt.Errorf("%w: cart add input invalid", ErrRequestFailed)
	}
	_, err := g.client.doJSON(ctx, http.MethodPost, "/cart", token, input)
	return err
}

// Remove 删除购物车项
func (g *CartGateway) Remove(ctx context.Context, token, productRef string) error {
	if strings.TrimSpace(productRef) == "" {
		return fmt.Errorf("%w: product ref is empty", ErrRequestFailed)
	}
	_, err := g.client.doJSON(ctx, http.MethodDelete, "/cart/"+url.PathEscape(productRef), token, nil)
	return err
}

// Clear 清空服务端购物车
func (g *CartGateway) Clear(ctx context.Context, token string) error {
	_, err := g.client.doJSON(ctx, http.MethodDelete, "/cart", token, nil)
	return err
}

// normalizeCart 将服务端购物车响应归一化为领域模型
func normalizeCart(raw json.RawMessage) (*models.Cart, error) {
	var wire cartWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode cart failed", ErrResponseInvalid)
	}
	cart := &models.Cart{Items: make([]models.CartItem, 0, len(wire.Items))}
	if wire.LastUpdated != nil {
		cart.LastUpdated = *wire.LastUpdated
	}
	for _, item := range wire.Items {
		productRef := decodeFlexibleID(item.ProductID)
		if productRef == "" || item.Quantity <= 0 {
			continue
		}
		itemType := strings.TrimSpace(item.ItemType)
		if itemType == "" {
			itemType = constants.ItemTypePortfolio
		}
		normalized := models.CartItem{
			ItemID:        item.ItemID,
			ProductRef:    productRef,
			ItemType:      itemType,
			Quantity:      item.Quantity,
			BillingPeriod: strings.TrimSpace(item.BillingPeriod),
			PlanCategory:  strings.TrimSpace(item.PlanCategory),
			Snapshot: models.ItemSnapshot{
				Name:        item.Name,
				Prices:      item.Prices,
				Description: item.Description,
			},
		}
		if item.AddedAt != nil {
			normalized.AddedAt = *item.AddedAt
		}
		cart.Items = append(cart.Items, normalized)
	}
	cart.Normalize()
	return cart, nil
}

// decodeFlexibleID 解析字符串或对象形式的产品引用
func decodeFlexibleID(raw json.RawMessage) string {
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
