package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/foliodesk/internal/models"
)

// BundleGateway 组合套餐查询接口
type BundleGateway struct {
	client *Client
}

// NewBundleGateway 创建组合套餐网关
func NewBundleGateway(client *Client) *BundleGateway {
	return &BundleGateway{client: client}
}

type bundleWire struct {
	ID             json.RawMessage `json:"id"`
	MongoID        json.RawMessage `json:"_id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	MonthlyPrice   models.Money    `json:"monthlyPrice"`
	QuarterlyPrice models.Money    `json:"quarterlyPrice"`
	YearlyPrice    models.Money    `json:"yearlyPrice"`
}

// GetByID 按 ID 查询组合套餐
func (g *BundleGateway) GetByID(ctx context.Context, token, bundleID string) (*models.Bundle, error) {
	bundleID = strings.TrimSpace(bundleID)
	if bundleID == "" {
		return nil, fmt.Errorf("%w: bundle id is empty", ErrRequestFailed)
	}
	body, err := g.client.doJSON(ctx, http.MethodGet, "/bundles/"+url.PathEscape(bundleID), token, nil)
	if err != nil {
		return nil, err
	}

	var wire bundleWire
	if err := json.Unmarshal(unwrapData(body), &wire); err != nil {
		return nil, fmt.Errorf("%w: decode bundle failed", ErrResponseInvalid)
	}
	bundle := &models.Bundle{
		ID:             decodeFlexibleID(wire.ID),
		Name:           wire.Name,
		Category:       strings.ToLower(strings.TrimSpace(wire.Category)),
		MonthlyPrice:   wire.MonthlyPrice,
		QuarterlyPrice: wire.QuarterlyPrice,
		YearlyPrice:    wire.YearlyPrice,
	}
	if bundle.ID == "" {
		bundle.ID = decodeFlexibleID(wire.MongoID)
	}
	if bundle.ID == "" {
		bundle.ID = bundleID
	}
	return bundle, nil
}
