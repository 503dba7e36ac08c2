package public

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// DeviceIDHeader 设备标识请求头
const DeviceIDHeader = "X-Device-ID"

// getDeviceID 提取设备标识，缺失时返回 false
func getDeviceID(c *gin.Context) (string, bool) {
	deviceID := strings.TrimSpace(c.GetHeader(DeviceIDHeader))
	if deviceID == "" {
		return "", false
	}
	return deviceID, true
}
