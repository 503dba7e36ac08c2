package public

import (
	"github.com/foliodesk/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetAccess 查询当前设备的订阅访问级别
// refresh=true 时绕过缓存强制重新解析
func (h *Handler) GetAccess(c *gin.Context) {
	deviceID, ok := getDeviceID(c)
	if !ok {
		response.BadRequest(c, "缺少设备标识")
		return
	}
	ctx := c.Request.Context()
	if c.Query("refresh") == "true" {
		response.Success(c, h.AccessService.ForceRefresh(ctx, deviceID))
		return
	}
	response.Success(c, h.AccessService.GetAccess(ctx, deviceID))
}
