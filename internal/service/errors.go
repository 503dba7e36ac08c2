package service

import "errors"

// 购物车相关错误
var (
	ErrCartItemInvalid      = errors.New("购物车项参数无效")
	ErrNotAuthenticated     = errors.New("当前设备未登录")
	ErrCartUpdateFailed     = errors.New("购物车更新失败，请重试")
	ErrBillingPeriodInvalid = errors.New("计费周期无效")
)

// 结账相关错误
var (
	ErrCheckoutNotFound      = errors.New("结账会话不存在")
	ErrCheckoutStateInvalid  = errors.New("结账状态不允许该操作")
	ErrCheckoutCartEmpty     = errors.New("购物车为空，无法结账")
	ErrVerificationFailed    = errors.New("支付核验失败")
	ErrVerificationExhausted = errors.New("支付核验多次未通过，请联系客服")
)
