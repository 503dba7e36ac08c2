package public

import (
	"errors"

	"github.com/foliodesk/internal/http/response"
	"github.com/foliodesk/internal/token"

	"github.com/gin-gonic/gin"
)

// sessionRequest 建立设备会话请求
// 令牌由上游登录接口签发，本服务只负责按设备保管
type sessionRequest struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token"`
	Persist      bool   `json:"persist"`
}

// CreateSession 绑定设备会话
func (h *Handler) CreateSession(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效")
		return
	}
	if h.TokenStore.IsTokenExpired(req.AccessToken) {
		response.Unauthorized(c, "令牌已过期")
		return
	}
	if err := h.TokenStore.SetTokens(c.Request.Context(), deviceID, req.AccessToken, req.RefreshToken, req.Persist); err != nil {
		response.Error(c, response.CodeInternal, "会话保存失败")
		return
	}
	response.Success(c, gin.H{"authenticated": true})
}

// GetSession 查询设备会话状态
func (h *Handler) GetSession(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	response.Success(c, gin.H{
		"authenticated": h.TokenStore.IsAuthenticated(c.Request.Context(), deviceID),
	})
}

// RefreshSession 换发会话令牌
func (h *Handler) RefreshSession(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	if err := h.TokenStore.RefreshTokens(c.Request.Context(), deviceID); err != nil {
		if errors.Is(err, token.ErrNoRefreshToken) {
			response.Unauthorized(c, "当前设备没有可用的刷新令牌")
			return
		}
		response.Unauthorized(c, "令牌刷新失败")
		return
	}
	response.Success(c, gin.H{"authenticated": true})
}

// DeleteSession 注销设备会话
func (h *Handler) DeleteSession(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	if err := h.TokenStore.ClearTokens(c.Request.Context(), deviceID); err != nil {
		response.Error(c, response.CodeInternal, "会话注销失败")
		return
	}
	response.Success(c, gin.H{"authenticated": false})
}
