package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/foliodesk/internal/constants"
	"github.com/foliodesk/internal/gateway"
	"github.com/foliodesk/internal/logger"
	"github.com/foliodesk/internal/models"
	"github.com/foliodesk/internal/payment/razorpay"

	"github.com/google/uuid"
)

// CheckoutGateway 下单与核验依赖
type CheckoutGateway interface {
	CreateOrder(ctx context.Context, token string, input gateway.CreateOrderInput) (*models.PaymentHandle, error)
	CreateEmandate(ctx context.Context, token string, input gateway.CreateEmandateInput) (*models.PaymentHandle, error)
	VerifyOrder(ctx context.Context, token string, input gateway.VerifyOrderInput) error
	VerifyEmandate(ctx context.Context, token string, input gateway.VerifyEmandateInput) error
}

// CheckoutSession 结账所需的会话依赖
type CheckoutSession interface {
	SessionTokens
	SetPendingEmandate(ctx context.Context, deviceID, subscriptionID string) error
	GetPendingEmandate(ctx context.Context, deviceID string) string
	ClearPendingEmandate(ctx context.Context, deviceID string) error
}

// CheckoutAccess 结账视角的访问解析依赖
// 支付核验通过后先失效再强制重解析，新订阅立即生效
type CheckoutAccess interface {
	Invalidate(ctx context.Context, deviceID string)
	ForceRefresh(ctx context.Context, deviceID string) *models.SubscriptionAccess
}

// CheckoutCart 结账视角的购物车依赖
type CheckoutCart interface {
	Authenticated(ctx context.Context, deviceID string) bool
	GetEffectiveCart(ctx context.Context, deviceID string) (*models.Cart, error)
	PushLocalToRemote(ctx context.Context, deviceID string) error
	ClearCart(ctx context.Context, deviceID string) (*models.Cart, error)
}

// CheckoutAttempt 单次结账尝试
// 状态机 review -> processing -> success / error，error 可经 Retry 回到 review
type CheckoutAttempt struct {
	ID            string                    `json:"id"`
	DeviceID      string                    `json:"-"`
	State         string                    `json:"state"`
	Kind          string                    `json:"kind"`
	BillingPeriod string                    `json:"billing_period"`
	PlanType      string                    `json:"plan_type,omitempty"`
	Amount        models.Money              `json:"amount"`
	Currency      string                    `json:"currency"`
	Items         []gateway.AddInput        `json:"items"`
	Handle        *models.PaymentHandle     `json:"handle,omitempty"`
	Options       *razorpay.CheckoutOptions `json:"checkout_options,omitempty"`
	FailureReason string                    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// CheckoutService 结账编排服务
type CheckoutService struct {
	cart    CheckoutCart
	gateway CheckoutGateway
	session CheckoutSession
	access  CheckoutAccess
	payment *razorpay.Config

	verifyMaxAttempts    int
	verifyInitialBackoff time.Duration
	sleep                func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	attempts map[string]*CheckoutAttempt
}

// NewCheckoutService 创建结账编排服务
func NewCheckoutService(cart CheckoutCart, gw CheckoutGateway, session CheckoutSession, access CheckoutAccess, payment *razorpay.Config, verifyMaxAttempts int, verifyInitialBackoff time.Duration) *CheckoutService {
	if verifyMaxAttempts <= 0 {
		verifyMaxAttempts = 5
	}
	if verifyInitialBackoff <= 0 {
		verifyInitialBackoff = time.Second
	}
	return &CheckoutService{
		cart:                 cart,
		gateway:              gw,
		session:              session,
		access:               access,
		payment:              payment,
		verifyMaxAttempts:    verifyMaxAttempts,
		verifyInitialBackoff: verifyInitialBackoff,
		sleep:                sleepCtx,
		attempts:             make(map[string]*CheckoutAttempt),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Begin 创建结账尝试并进入确认页
// 本地购物车在此处一次性推送到服务端，之后以服务端购物车为准定价
func (s *CheckoutService) Begin(ctx context.Context, deviceID string) (*CheckoutAttempt, error) {
	if !s.cart.Authenticated(ctx, deviceID) {
		return nil, ErrNotAuthenticated
	}
	if err := s.cart.PushLocalToRemote(ctx, deviceID); err != nil && !errors.Is(err, ErrNotAuthenticated) {
		return nil, err
	}

	cart, err := s.cart.GetEffectiveCart(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrCheckoutCartEmpty
	}

	attempt, err := buildAttempt(deviceID, cart, s.payment.Currency)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.attempts[attempt.ID] = attempt
	s.mu.Unlock()

	logger.Infow("checkout_begin",
		"device", deviceID,
		"attempt", attempt.ID,
		"kind", attempt.Kind,
		"period", attempt.BillingPeriod,
	)
	return s.snapshot(attempt), nil
}

// buildAttempt 根据购物车生成结账尝试
// 月付走一次性订单，季付和年付走委托扣款；购物车内周期必须一致
func buildAttempt(deviceID string, cart *models.Cart, currency string) (*CheckoutAttempt, error) {
	period := ""
	planType := ""
	total := models.NewMoneyFromInt(0)
	items := make([]gateway.AddInput, 0, len(cart.Items))

	for _, item := range cart.Items {
		if period == "" {
			period = item.BillingPeriod
		} else if period != item.BillingPeriod {
			return nil, ErrBillingPeriodInvalid
		}
		if item.PlanCategory == constants.PlanCategoryPremium || planType == "" {
			planType = item.PlanCategory
		}
		if price, ok := item.Snapshot.Prices.ForPeriod(item.BillingPeriod); ok {
			total = total.AddMoney(price.MulInt(item.Quantity))
		}
		items = append(items, gateway.AddInput{
			ProductRef:   item.ProductRef,
			Quantity:     item.Quantity,
			PlanCategory: item.PlanCategory,
		})
	}

	kind := constants.CheckoutKindEmandate
	if period == constants.BillingPeriodMonthly {
		kind = constants.CheckoutKindOrder
	}

	now := time.Now()
	return &CheckoutAttempt{
		ID:            uuid.NewString(),
		DeviceID:      deviceID,
		State:         constants.CheckoutStateReview,
		Kind:          kind,
		BillingPeriod: period,
		PlanType:      planType,
		Amount:        total,
		Currency:      currency,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Confirm 确认结账，向上游创建支付句柄并生成挂件参数
func (s *CheckoutService) Confirm(ctx context.Context, deviceID, attemptID string, prefill razorpay.Prefill) (*CheckoutAttempt, error) {
	attempt, err := s.lookup(deviceID, attemptID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if attempt.State != constants.CheckoutStateReview {
		s.mu.Unlock()
		return nil, ErrCheckoutStateInvalid
	}
	attempt.State = constants.CheckoutStateProcessing
	attempt.FailureReason = ""
	attempt.UpdatedAt = time.Now()
	s.mu.Unlock()

	token := s.session.GetAccessToken(ctx, deviceID)
	handle, err := s.createHandle(ctx, token, attempt)
	if err != nil {
		s.fail(ctx, attempt, constants.CheckoutFailureVerifyFailed)
		return nil, fmt.Errorf("%w: %v", ErrCheckoutStateInvalid, err)
	}

	options, err := razorpay.BuildCheckoutOptions(s.payment, handle, prefill)
	if err != nil {
		s.fail(ctx, attempt, constants.CheckoutFailureVerifyFailed)
		return nil, err
	}

	if handle.Kind == constants.CheckoutKindEmandate {
		if err := s.session.SetPendingEmandate(ctx, deviceID, handle.SubscriptionID); err != nil {
			logger.Warnw("checkout_pending_emandate_save_failed", "device", deviceID, "error", err)
		}
	}

	s.mu.Lock()
	attempt.Handle = handle
	attempt.Options = options
	attempt.UpdatedAt = time.Now()
	s.mu.Unlock()
	return s.snapshot(attempt), nil
}

func (s *CheckoutService) createHandle(ctx context.Context, token string, attempt *CheckoutAttempt) (*models.PaymentHandle, error) {
	if attempt.Kind == constants.CheckoutKindOrder {
		return s.gateway.CreateOrder(ctx, token, gateway.CreateOrderInput{
			Items:    attempt.Items,
			PlanType: attempt.PlanType,
			Amount:   attempt.Amount,
			Currency: attempt.Currency,
		})
	}
	return s.gateway.CreateEmandate(ctx, token, gateway.CreateEmandateInput{
		Items:    attempt.Items,
		PlanType: attempt.PlanType,
		Period:   attempt.BillingPeriod,
		Amount:   attempt.Amount,
		Currency: attempt.Currency,
	})
}

// Complete 回报挂件支付结果并完成核验
// 先做本地签名核验，再做上游核验；委托核验对落库竞态做指数退避重试。
// 访问缓存失效严格先于 success 状态落地，成功页读到的必然是新鲜解析
func (s *CheckoutService) Complete(ctx context.Context, deviceID, attemptID, paymentID, signature string) (*CheckoutAttempt, error) {
	attempt, err := s.lookup(deviceID, attemptID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if attempt.State != constants.CheckoutStateProcessing || attempt.Handle == nil {
		s.mu.Unlock()
		return nil, ErrCheckoutStateInvalid
	}
	handle := attempt.Handle
	s.mu.Unlock()

	if err := s.verifyLocalSignature(handle, paymentID, signature); err != nil {
		s.fail(ctx, attempt, constants.CheckoutFailureVerifyFailed)
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	token := s.session.GetAccessToken(ctx, deviceID)
	if handle.Kind == constants.CheckoutKindOrder {
		err = s.gateway.VerifyOrder(ctx, token, gateway.VerifyOrderInput{
			OrderID:   handle.OrderID,
			PaymentID: paymentID,
			Signature: signature,
		})
		if err != nil {
			s.fail(ctx, attempt, constants.CheckoutFailureVerifyFailed)
			return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
		}
	} else {
		if err := s.verifyEmandateWithRetry(ctx, token, handle.SubscriptionID, paymentID, signature); err != nil {
			reason := constants.CheckoutFailureVerifyFailed
			if errors.Is(err, ErrVerificationExhausted) {
				reason = constants.CheckoutFailureVerifyTimedOut
			}
			s.fail(ctx, attempt, reason)
			return nil, err
		}
	}

	s.finishSuccess(ctx, attempt)
	return s.snapshot(attempt), nil
}

func (s *CheckoutService) verifyLocalSignature(handle *models.PaymentHandle, paymentID, signature string) error {
	if handle.Kind == constants.CheckoutKindOrder {
		return razorpay.VerifyPaymentSignature(s.payment, handle.OrderID, paymentID, signature)
	}
	return razorpay.VerifySubscriptionSignature(s.payment, handle.SubscriptionID, paymentID, signature)
}

// verifyEmandateWithRetry 带退避的委托核验
// 仅订阅未落库时重试，间隔从初始值起逐次翻倍
func (s *CheckoutService) verifyEmandateWithRetry(ctx context.Context, token, subscriptionID, paymentID, signature string) error {
	backoff := s.verifyInitialBackoff
	var lastErr error
	for attempt := 1; attempt <= s.verifyMaxAttempts; attempt++ {
		err := s.gateway.VerifyEmandate(ctx, token, gateway.VerifyEmandateInput{
			SubscriptionID: subscriptionID,
			PaymentID:      paymentID,
			Signature:      signature,
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gateway.ErrSubscriptionNotReady) {
			return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
		}
		lastErr = err
		if attempt == s.verifyMaxAttempts {
			break
		}
		logger.Infow("checkout_emandate_verify_retry",
			"subscription", subscriptionID,
			"attempt", attempt,
			"backoff", backoff.String(),
		)
		if err := s.sleep(ctx, backoff); err != nil {
			return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", ErrVerificationExhausted, lastErr)
}

// Cancel 用户在支付挂件中主动放弃
func (s *CheckoutService) Cancel(ctx context.Context, deviceID, attemptID string) (*CheckoutAttempt, error) {
	attempt, err := s.lookup(deviceID, attemptID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if attempt.State != constants.CheckoutStateProcessing {
		s.mu.Unlock()
		return nil, ErrCheckoutStateInvalid
	}
	s.mu.Unlock()
	s.fail(ctx, attempt, constants.CheckoutFailureCancelled)
	return s.snapshot(attempt), nil
}

// Retry 从失败状态回到确认页
// 购物车快照沿用上次计算结果，不重新拉取定价
func (s *CheckoutService) Retry(ctx context.Context, deviceID, attemptID string) (*CheckoutAttempt, error) {
	attempt, err := s.lookup(deviceID, attemptID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt.State != constants.CheckoutStateError {
		return nil, ErrCheckoutStateInvalid
	}
	attempt.State = constants.CheckoutStateReview
	attempt.FailureReason = ""
	attempt.Handle = nil
	attempt.Options = nil
	attempt.UpdatedAt = time.Now()
	return snapshotAttemptLocked(attempt), nil
}

// Get 查询结账尝试
func (s *CheckoutService) Get(deviceID, attemptID string) (*CheckoutAttempt, error) {
	attempt, err := s.lookup(deviceID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(attempt), nil
}

// PendingEmandate 读取页面刷新前遗留的待核验委托订阅 ID
func (s *CheckoutService) PendingEmandate(ctx context.Context, deviceID string) string {
	return s.session.GetPendingEmandate(ctx, deviceID)
}

func (s *CheckoutService) lookup(deviceID, attemptID string) (*CheckoutAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt := s.attempts[attemptID]
	if attempt == nil || attempt.DeviceID != deviceID {
		return nil, ErrCheckoutNotFound
	}
	return attempt, nil
}

func (s *CheckoutService) fail(ctx context.Context, attempt *CheckoutAttempt, reason string) {
	s.mu.Lock()
	attempt.State = constants.CheckoutStateError
	attempt.FailureReason = reason
	attempt.UpdatedAt = time.Now()
	s.mu.Unlock()
	logger.Warnw("checkout_failed",
		"device", attempt.DeviceID,
		"attempt", attempt.ID,
		"reason", reason,
	)
}

func (s *CheckoutService) finishSuccess(ctx context.Context, attempt *CheckoutAttempt) {
	// 失效与重解析必须发生在 success 可被观察到之前
	s.access.Invalidate(ctx, attempt.DeviceID)
	s.access.ForceRefresh(ctx, attempt.DeviceID)

	if err := s.session.ClearPendingEmandate(ctx, attempt.DeviceID); err != nil {
		logger.Warnw("checkout_pending_emandate_clear_failed", "device", attempt.DeviceID, "error", err)
	}
	if _, err := s.cart.ClearCart(ctx, attempt.DeviceID); err != nil {
		logger.Warnw("checkout_cart_clear_failed", "device", attempt.DeviceID, "error", err)
	}

	s.mu.Lock()
	attempt.State = constants.CheckoutStateSuccess
	attempt.FailureReason = ""
	attempt.UpdatedAt = time.Now()
	s.mu.Unlock()

	logger.Infow("checkout_success",
		"device", attempt.DeviceID,
		"attempt", attempt.ID,
		"kind", attempt.Kind,
	)
}

func (s *CheckoutService) snapshot(attempt *CheckoutAttempt) *CheckoutAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotAttemptLocked(attempt)
}

// snapshotAttemptLocked 返回与在途尝试完全独立的副本
func snapshotAttemptLocked(attempt *CheckoutAttempt) *CheckoutAttempt {
	clone := *attempt
	if attempt.Items != nil {
		clone.Items = make([]gateway.AddInput, len(attempt.Items))
		copy(clone.Items, attempt.Items)
	}
	if attempt.Handle != nil {
		handle := *attempt.Handle
		clone.Handle = &handle
	}
	if attempt.Options != nil {
		options := *attempt.Options
		clone.Options = &options
	}
	return &clone
}
