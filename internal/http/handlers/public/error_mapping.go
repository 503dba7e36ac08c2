package public

import (
	"errors"

	"github.com/foliodesk/internal/gateway"
	"github.com/foliodesk/internal/http/response"
	"github.com/foliodesk/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			response.Error(c, rule.code, rule.msg)
			return
		}
	}
	response.Error(c, fallbackCode, fallbackMsg)
}

var cartCommonErrorRules = []mappedHandlerError{
	{target: service.ErrCartItemInvalid, code: response.CodeCartInvalid, msg: service.ErrCartItemInvalid.Error()},
	{target: service.ErrBillingPeriodInvalid, code: response.CodeCartInvalid, msg: service.ErrBillingPeriodInvalid.Error()},
	{target: service.ErrCartUpdateFailed, code: response.CodeCartUpdateFailed, msg: service.ErrCartUpdateFailed.Error()},
	{target: service.ErrNotAuthenticated, code: response.CodeUnauthorized, msg: service.ErrNotAuthenticated.Error()},
	{target: gateway.ErrUnauthorized, code: response.CodeUnauthorized, msg: "登录状态已失效"},
	{target: gateway.ErrRequestFailed, code: response.CodeUpstreamFailed, msg: "服务暂时不可用，请稍后重试"},
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrNotAuthenticated, code: response.CodeUnauthorized, msg: service.ErrNotAuthenticated.Error()},
	{target: service.ErrCheckoutNotFound, code: response.CodeNotFound, msg: service.ErrCheckoutNotFound.Error()},
	{target: service.ErrCheckoutStateInvalid, code: response.CodeCheckoutState, msg: service.ErrCheckoutStateInvalid.Error()},
	{target: service.ErrCheckoutCartEmpty, code: response.CodeCheckoutEmptyCart, msg: service.ErrCheckoutCartEmpty.Error()},
	{target: service.ErrBillingPeriodInvalid, code: response.CodeCartInvalid, msg: service.ErrBillingPeriodInvalid.Error()},
	{target: service.ErrVerificationExhausted, code: response.CodeVerifyExhausted, msg: service.ErrVerificationExhausted.Error()},
	{target: service.ErrVerificationFailed, code: response.CodeVerifyFailed, msg: service.ErrVerificationFailed.Error()},
	{target: service.ErrCartUpdateFailed, code: response.CodeCartUpdateFailed, msg: service.ErrCartUpdateFailed.Error()},
	{target: gateway.ErrUnauthorized, code: response.CodeUnauthorized, msg: "登录状态已失效"},
	{target: gateway.ErrRequestFailed, code: response.CodeUpstreamFailed, msg: "服务暂时不可用，请稍后重试"},
}

func respondCartError(c *gin.Context, err error) {
	respondWithMappedError(c, err, cartCommonErrorRules, response.CodeInternal, "购物车操作失败")
}

func respondCheckoutError(c *gin.Context, err error) {
	respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "结账操作失败")
}
