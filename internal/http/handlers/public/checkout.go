package public

import (
	"github.com/foliodesk/internal/http/response"
	"github.com/foliodesk/internal/payment/razorpay"

	"github.com/gin-gonic/gin"
)

// BeginCheckout 创建结账尝试
func (h *Handler) BeginCheckout(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	attempt, err := h.CheckoutService.Begin(c.Request.Context(), deviceID)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, attempt)
}

// confirmCheckoutRequest 确认结账请求
type confirmCheckoutRequest struct {
	Prefill razorpay.Prefill `json:"prefill"`
}

// ConfirmCheckout 确认结账并生成支付挂件参数
func (h *Handler) ConfirmCheckout(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	var req confirmCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "请求参数无效")
		return
	}
	attempt, err := h.CheckoutService.Confirm(c.Request.Context(), deviceID, c.Param("attempt_id"), req.Prefill)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, attempt)
}

// completeCheckoutRequest 支付结果回报请求
type completeCheckoutRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// CompleteCheckout 回报支付结果并完成核验
func (h *Handler) CompleteCheckout(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	var req completeCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效")
		return
	}
	attempt, err := h.CheckoutService.Complete(c.Request.Context(), deviceID, c.Param("attempt_id"), req.PaymentID, req.Signature)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, attempt)
}

// CancelCheckout 用户取消支付
func (h *Handler) CancelCheckout(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	attempt, err := h.CheckoutService.Cancel(c.Request.Context(), deviceID, c.Param("attempt_id"))
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, attempt)
}

// RetryCheckout 失败后重回确认页
func (h *Handler) RetryCheckout(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	attempt, err := h.CheckoutService.Retry(c.Request.Context(), deviceID, c.Param("attempt_id"))
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, attempt)
}

// GetCheckout 查询结账尝试
func (h *Handler) GetCheckout(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	attempt, err := h.CheckoutService.Get(deviceID, c.Param("attempt_id"))
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, attempt)
}

// GetPendingEmandate 查询刷新前遗留的待核验委托
func (h *Handler) GetPendingEmandate(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	response.Success(c, gin.H{
		"subscription_id": h.CheckoutService.PendingEmandate(c.Request.Context(), deviceID),
	})
}
