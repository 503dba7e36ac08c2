package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foliodesk/internal/cache"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoRefreshToken = errors.New("no refresh token for device")
	ErrRefreshFailed  = errors.New("token refresh failed")
)

const (
	sessionTTL = 24 * time.Hour
	persistTTL = 30 * 24 * time.Hour

	// 委托扣款待核验 ID 的保留窗口
	// 页面刷新后仍可恢复核验，但不会无限期挂起
	pendingEmandateTTL = 24 * time.Hour
)

// RefreshFunc 调用上游刷新令牌
type RefreshFunc func(ctx context.Context, refreshToken string) (access string, refresh string, err error)

// Tokens 设备会话令牌
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Persist bool   `json:"persist"`
}

// Store 设备级令牌存储
// 附带待核验委托 ID 的伴生存储，供结账中断后恢复核验
type Store struct {
	cache   cache.Store
	refresh RefreshFunc
}

// NewStore 创建令牌存储
func NewStore(cacheStore cache.Store, refresh RefreshFunc) *Store {
	return &Store{cache: cacheStore, refresh: refresh}
}

// GetAccessToken 获取设备当前 access token，无会话时返回空串
func (s *Store) GetAccessToken(ctx context.Context, deviceID string) string {
	tokens, ok := s.getTokens(ctx, deviceID)
	if !ok {
		return ""
	}
	return tokens.Access
}

// SetTokens 写入设备会话令牌
func (s *Store) SetTokens(ctx context.Context, deviceID, access, refresh string, persist bool) error {
	if strings.TrimSpace(deviceID) == "" || strings.TrimSpace(access) == "" {
		return errors.New("device id and access token are required")
	}
	ttl := sessionTTL
	if persist {
		ttl = persistTTL
	}
	return s.cache.SetJSON(ctx, tokensKey(deviceID), Tokens{
		Access:  access,
		Refresh: refresh,
		Persist: persist,
	}, ttl)
}

// ClearTokens 清除设备会话令牌
func (s *Store) ClearTokens(ctx context.Context, deviceID string) error {
	return s.cache.Del(ctx, tokensKey(deviceID))
}

// IsTokenExpired 判断 JWT 是否过期
// 只解析 exp 声明，签名校验由上游完成；解析失败按已过期处理
func (s *Store) IsTokenExpired(tokenString string) bool {
	if strings.TrimSpace(tokenString) == "" {
		return true
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return true
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return true
	}
	return time.Now().After(expiry.Time)
}

// IsAuthenticated 判断设备是否持有未过期的会话
func (s *Store) IsAuthenticated(ctx context.Context, deviceID string) bool {
	access := s.GetAccessToken(ctx, deviceID)
	return access != "" && !s.IsTokenExpired(access)
}

// RefreshTokens 用 refresh token 换发新令牌
func (s *Store) RefreshTokens(ctx context.Context, deviceID string) error {
	tokens, ok := s.getTokens(ctx, deviceID)
	if !ok || strings.TrimSpace(tokens.Refresh) == "" {
		return ErrNoRefreshToken
	}
	if s.refresh == nil {
		return ErrRefreshFailed
	}
	access, refresh, err := s.refresh(ctx, tokens.Refresh)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return s.SetTokens(ctx, deviceID, access, refresh, tokens.Persist)
}

// SetPendingEmandate 记录待核验的委托订阅 ID
func (s *Store) SetPendingEmandate(ctx context.Context, deviceID, subscriptionID string) error {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil
	}
	return s.cache.SetJSON(ctx, pendingEmandateKey(deviceID), subscriptionID, pendingEmandateTTL)
}

// GetPendingEmandate 读取待核验的委托订阅 ID
func (s *Store) GetPendingEmandate(ctx context.Context, deviceID string) string {
	var subscriptionID string
	hit, err := s.cache.GetJSON(ctx, pendingEmandateKey(deviceID), &subscriptionID)
	if err != nil || !hit {
		return ""
	}
	return subscriptionID
}

// ClearPendingEmandate 清除待核验的委托订阅 ID
func (s *Store) ClearPendingEmandate(ctx context.Context, deviceID string) error {
	return s.cache.Del(ctx, pendingEmandateKey(deviceID))
}

func (s *Store) getTokens(ctx context.Context, deviceID string) (Tokens, bool) {
	if strings.TrimSpace(deviceID) == "" {
		return Tokens{}, false
	}
	var tokens Tokens
	hit, err := s.cache.GetJSON(ctx, tokensKey(deviceID), &tokens)
	if err != nil || !hit {
		return Tokens{}, false
	}
	return tokens, true
}

func tokensKey(deviceID string) string {
	return "session:tokens:" + deviceID
}

func pendingEmandateKey(deviceID string) string {
	return "session:emandate:" + deviceID
}
