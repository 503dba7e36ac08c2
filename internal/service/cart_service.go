package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/foliodesk/internal/constants"
	"github.com/foliodesk/internal/gateway"
	"github.com/foliodesk/internal/localcart"
	"github.com/foliodesk/internal/logger"
	"github.com/foliodesk/internal/models"
)

// CartRemote 服务端购物车依赖
type CartRemote interface {
	Get(ctx context.Context, token string) (*models.Cart, error)
	Add(ctx context.Context, token string, input gateway.AddInput) error
	Remove(ctx context.Context, token, productRef string) error
	Clear(ctx context.Context, token string) error
}

// CartLocal 本地购物车依赖
type CartLocal interface {
	Read(deviceID string) *models.Cart
	AddItem(deviceID string, input localcart.AddItemInput) *models.Cart
	RemoveItem(deviceID, productRef string) *models.Cart
	SetQuantity(deviceID, productRef string, quantity int) *models.Cart
	Clear(deviceID string)
	Degraded() bool
}

// SessionTokens 会话令牌依赖
type SessionTokens interface {
	GetAccessToken(ctx context.Context, deviceID string) string
	IsTokenExpired(token string) bool
}

// cartState 已认证设备的购物车三态
// committed 为最近一次服务端确认的快照，optimistic 为乐观变更后的视图，
// pending 标记仍有服务端变更未落定的购物车项
type cartState struct {
	committed  *models.Cart
	optimistic *models.Cart
	pending    map[string]struct{}
}

// CartService 购物车编排服务
//
// 同一购物车项的变更不做内部串行化：上游的数量更新会被拆解为删除加
// 重加两个原语，并发触发同一项会产生丢失更新。调用方必须在前一个
// 变更落定前禁用该项的再次触发。
type CartService struct {
	remote CartRemote
	local  CartLocal
	tokens SessionTokens

	mu     sync.Mutex
	states map[string]*cartState
}

// NewCartService 创建购物车编排服务
func NewCartService(remote CartRemote, local CartLocal, tokens SessionTokens) *CartService {
	return &CartService{
		remote: remote,
		local:  local,
		tokens: tokens,
		states: make(map[string]*cartState),
	}
}

// Authenticated 判断设备是否处于已认证状态
func (s *CartService) Authenticated(ctx context.Context, deviceID string) bool {
	access := s.tokens.GetAccessToken(ctx, deviceID)
	return access != "" && !s.tokens.IsTokenExpired(access)
}

// GetEffectiveCart 返回界面应渲染的购物车
// 已认证取服务端购物车（有乐观视图时优先），未认证取本地购物车
func (s *CartService) GetEffectiveCart(ctx context.Context, deviceID string) (*models.Cart, error) {
	if !s.Authenticated(ctx, deviceID) {
		return s.local.Read(deviceID), nil
	}

	s.mu.Lock()
	state := s.states[deviceID]
	if state != nil && state.optimistic != nil {
		cart := state.optimistic.Clone()
		s.mu.Unlock()
		return cart, nil
	}
	s.mu.Unlock()

	return s.fetchRemote(ctx, deviceID)
}

// AddToCartInput 添加购物车项输入
type AddToCartInput struct {
	ProductRef    string
	Quantity      int
	BillingPeriod string
	ItemType      string
	PlanCategory  string
	Snapshot      models.ItemSnapshot
}

func (input *AddToCartInput) validate() error {
	if strings.TrimSpace(input.ProductRef) == "" || input.Quantity <= 0 {
		return ErrCartItemInvalid
	}
	if input.ItemType != constants.ItemTypePortfolio && input.ItemType != constants.ItemTypeBundle {
		return ErrCartItemInvalid
	}
	switch input.BillingPeriod {
	case constants.BillingPeriodMonthly, constants.BillingPeriodQuarterly, constants.BillingPeriodYearly:
		return nil
	}
	return ErrBillingPeriodInvalid
}

// AddToCart 添加购物车项
func (s *CartService) AddToCart(ctx context.Context, deviceID string, input AddToCartInput) (*models.Cart, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	if !s.Authenticated(ctx, deviceID) {
		return s.local.AddItem(deviceID, localcart.AddItemInput{
			ProductRef:    input.ProductRef,
			Quantity:      input.Quantity,
			BillingPeriod: input.BillingPeriod,
			ItemType:      input.ItemType,
			PlanCategory:  input.PlanCategory,
			Snapshot:      input.Snapshot,
		}), nil
	}

	token := s.tokens.GetAccessToken(ctx, deviceID)
	err := s.remote.Add(ctx, token, gateway.AddInput{
		ProductRef:   input.ProductRef,
		Quantity:     input.Quantity,
		PlanCategory: input.PlanCategory,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCartUpdateFailed, err)
	}
	return s.fetchRemote(ctx, deviceID)
}

// UpdateQuantity 更新购物车项数量
// 已认证时先应用乐观视图再发起服务端变更；服务端失败则丢弃乐观视图
// 并回读权威购物车，界面偏差不会跨越一次失败的往返
func (s *CartService) UpdateQuantity(ctx context.Context, deviceID, productRef string, quantity int) (*models.Cart, error) {
	if strings.TrimSpace(productRef) == "" {
		return nil, ErrCartItemInvalid
	}

	if !s.Authenticated(ctx, deviceID) {
		return s.local.SetQuantity(deviceID, productRef, quantity), nil
	}

	return s.mutateRemote(ctx, deviceID, productRef,
		func(cart *models.Cart) {
			cart.SetQuantity(productRef, quantity)
		},
		func(token string, committed *models.Cart) error {
			return s.applyRemoteQuantity(ctx, token, committed, productRef, quantity)
		},
	)
}

// RemoveFromCart 删除购物车项
func (s *CartService) RemoveFromCart(ctx context.Context, deviceID, productRef string) (*models.Cart, error) {
	if strings.TrimSpace(productRef) == "" {
		return nil, ErrCartItemInvalid
	}

	if !s.Authenticated(ctx, deviceID) {
		return s.local.RemoveItem(deviceID, productRef), nil
	}

	return s.mutateRemote(ctx, deviceID, productRef,
		func(cart *models.Cart) {
			cart.RemoveItem(productRef)
		},
		func(token string, _ *models.Cart) error {
			return s.remote.Remove(ctx, token, productRef)
		},
	)
}

// ClearCart 清空购物车
func (s *CartService) ClearCart(ctx context.Context, deviceID string) (*models.Cart, error) {
	if !s.Authenticated(ctx, deviceID) {
		s.local.Clear(deviceID)
		return s.local.Read(deviceID), nil
	}

	return s.mutateRemote(ctx, deviceID, "*",
		func(cart *models.Cart) {
			cart.Items = cart.Items[:0]
		},
		func(token string, _ *models.Cart) error {
			return s.remote.Clear(ctx, token)
		},
	)
}

// ConvertToServerCartFormat 将本地购物车映射为服务端添加输入
// 登录后不自动合并，只有显式结账推送才消费该映射，避免与已有
// 服务端购物车产生重复添加竞态
func (s *CartService) ConvertToServerCartFormat(deviceID string) []gateway.AddInput {
	cart := s.local.Read(deviceID)
	inputs := make([]gateway.AddInput, 0, len(cart.Items))
	for _, item := range cart.Items {
		inputs = append(inputs, gateway.AddInput{
			ProductRef:   item.ProductRef,
			Quantity:     item.Quantity,
			PlanCategory: item.PlanCategory,
		})
	}
	return inputs
}

// PushLocalToRemote 结账时将本地购物车推送到服务端并清空本地
// 推送是单向的，不读回合并
func (s *CartService) PushLocalToRemote(ctx context.Context, deviceID string) error {
	if !s.Authenticated(ctx, deviceID) {
		return ErrNotAuthenticated
	}
	token := s.tokens.GetAccessToken(ctx, deviceID)
	for _, input := range s.ConvertToServerCartFormat(deviceID) {
		if err := s.remote.Add(ctx, token, input); err != nil {
			return fmt.Errorf("%w: %v", ErrCartUpdateFailed, err)
		}
	}
	s.local.Clear(deviceID)
	s.invalidateState(deviceID)
	return nil
}

// LocalDegraded 查询本地存储是否已降级
func (s *CartService) LocalDegraded() bool {
	return s.local.Degraded()
}

// mutateRemote 按乐观更新模式执行服务端变更
func (s *CartService) mutateRemote(ctx context.Context, deviceID, itemRef string, apply func(*models.Cart), remoteOp func(token string, committed *models.Cart) error) (*models.Cart, error) {
	committed, err := s.committedCart(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	optimistic := committed.Clone()
	apply(optimistic)

	s.mu.Lock()
	state := s.ensureStateLocked(deviceID)
	state.committed = committed
	state.optimistic = optimistic
	state.pending[itemRef] = struct{}{}
	s.mu.Unlock()

	token := s.tokens.GetAccessToken(ctx, deviceID)
	opErr := remoteOp(token, committed)

	s.mu.Lock()
	delete(state.pending, itemRef)
	if opErr == nil {
		state.committed = optimistic
		state.optimistic = nil
		result := optimistic.Clone()
		s.mu.Unlock()
		return result, nil
	}
	// 丢弃乐观视图，回读权威购物车
	state.optimistic = nil
	state.committed = nil
	s.mu.Unlock()

	logger.Warnw("cart_mutation_reverted",
		"device", deviceID,
		"item", itemRef,
		"error", opErr,
	)
	if _, refreshErr := s.fetchRemote(ctx, deviceID); refreshErr != nil {
		logger.Warnw("cart_refetch_after_revert_failed", "device", deviceID, "error", refreshErr)
	}
	return nil, fmt.Errorf("%w: %v", ErrCartUpdateFailed, opErr)
}

// applyRemoteQuantity 将数量更新拆解为服务端原语
// 增量为正时直接补加差额；否则退化为先删后加。删除成功而重加失败时
// 该项会从服务端购物车丢失，直到下一次回读才能暴露，这是上游缺少
// 原子数量端点的已知缺口
func (s *CartService) applyRemoteQuantity(ctx context.Context, token string, committed *models.Cart, productRef string, quantity int) error {
	if quantity <= 0 {
		return s.remote.Remove(ctx, token, productRef)
	}

	current := 0
	planCategory := ""
	for _, item := range committed.Items {
		if item.ProductRef == productRef {
			current = item.Quantity
			planCategory = item.PlanCategory
			break
		}
	}

	if current > 0 && quantity > current {
		return s.remote.Add(ctx, token, gateway.AddInput{
			ProductRef:   productRef,
			Quantity:     quantity - current,
			PlanCategory: planCategory,
		})
	}

	if current > 0 {
		if err := s.remote.Remove(ctx, token, productRef); err != nil {
			return err
		}
	}
	return s.remote.Add(ctx, token, gateway.AddInput{
		ProductRef:   productRef,
		Quantity:     quantity,
		PlanCategory: planCategory,
	})
}

func (s *CartService) committedCart(ctx context.Context, deviceID string) (*models.Cart, error) {
	s.mu.Lock()
	state := s.states[deviceID]
	if state != nil && state.committed != nil {
		cart := state.committed.Clone()
		s.mu.Unlock()
		return cart, nil
	}
	s.mu.Unlock()
	return s.fetchRemote(ctx, deviceID)
}

func (s *CartService) fetchRemote(ctx context.Context, deviceID string) (*models.Cart, error) {
	token := s.tokens.GetAccessToken(ctx, deviceID)
	cart, err := s.remote.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	state := s.ensureStateLocked(deviceID)
	state.committed = cart.Clone()
	s.mu.Unlock()
	return cart, nil
}

func (s *CartService) ensureStateLocked(deviceID string) *cartState {
	state := s.states[deviceID]
	if state == nil {
		state = &cartState{pending: make(map[string]struct{})}
		s.states[deviceID] = state
	}
	return state
}

func (s *CartService) invalidateState(deviceID string) {
	s.mu.Lock()
	delete(s.states, deviceID)
	s.mu.Unlock()
}
