package public

import (
	"github.com/foliodesk/internal/http/response"
	"github.com/foliodesk/internal/models"
	"github.com/foliodesk/internal/service"

	"github.com/gin-gonic/gin"
)

// cartPayload 购物车响应载荷
type cartPayload struct {
	Cart          *models.Cart `json:"cart"`
	Authenticated bool         `json:"authenticated"`
	Degraded      bool         `json:"storage_degraded"`
}

func (h *Handler) cartPayload(c *gin.Context, deviceID string, cart *models.Cart) cartPayload {
	return cartPayload{
		Cart:          cart,
		Authenticated: h.CartService.Authenticated(c.Request.Context(), deviceID),
		Degraded:      h.CartService.LocalDegraded(),
	}
}

// GetCart 读取当前设备的有效购物车
func (h *Handler) GetCart(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	cart, err := h.CartService.GetEffectiveCart(c.Request.Context(), deviceID)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, h.cartPayload(c, deviceID, cart))
}

// addToCartRequest 添加购物车项请求
type addToCartRequest struct {
	ProductRef    string              `json:"product_ref" binding:"required"`
	Quantity      int                 `json:"quantity" binding:"required"`
	BillingPeriod string              `json:"billing_period" binding:"required"`
	ItemType      string              `json:"item_type" binding:"required"`
	PlanCategory  string              `json:"plan_category"`
	Snapshot      models.ItemSnapshot `json:"snapshot"`
}

// AddToCart 添加购物车项
func (h *Handler) AddToCart(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效")
		return
	}
	cart, err := h.CartService.AddToCart(c.Request.Context(), deviceID, service.AddToCartInput{
		ProductRef:    req.ProductRef,
		Quantity:      req.Quantity,
		BillingPeriod: req.BillingPeriod,
		ItemType:      req.ItemType,
		PlanCategory:  req.PlanCategory,
		Snapshot:      req.Snapshot,
	})
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, h.cartPayload(c, deviceID, cart))
}

// updateQuantityRequest 更新数量请求
type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateQuantity 更新购物车项数量
func (h *Handler) UpdateQuantity(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	productRef := c.Param("product_ref")
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效")
		return
	}
	cart, err := h.CartService.UpdateQuantity(c.Request.Context(), deviceID, productRef, req.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, h.cartPayload(c, deviceID, cart))
}

// RemoveFromCart 删除购物车项
func (h *Handler) RemoveFromCart(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	cart, err := h.CartService.RemoveFromCart(c.Request.Context(), deviceID, c.Param("product_ref"))
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, h.cartPayload(c, deviceID, cart))
}

// ClearCart 清空购物车
func (h *Handler) ClearCart(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	cart, err := h.CartService.ClearCart(c.Request.Context(), deviceID)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, h.cartPayload(c, deviceID, cart))
}
