package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// AuthGateway 上游令牌接口
type AuthGateway struct {
	client *Client
}

// NewAuthGateway 创建令牌网关
func NewAuthGateway(client *Client) *AuthGateway {
	return &AuthGateway{client: client}
}

type refreshWire struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh 用 refresh token 换发新令牌
func (g *AuthGateway) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	body, err := g.client.doJSON(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return "", "", err
	}
	var wire refreshWire
	if err := json.Unmarshal(unwrapData(body), &wire); err != nil {
		return "", "", fmt.Errorf("%w: decode refresh response failed", ErrResponseInvalid)
	}
	access := strings.TrimSpace(wire.AccessToken)
	if access == "" {
		return "", "", fmt.Errorf("%w: access token missing", ErrResponseInvalid)
	}
	return access, strings.TrimSpace(wire.RefreshToken), nil
}
