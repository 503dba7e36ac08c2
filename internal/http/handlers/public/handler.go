package public

import "github.com/foliodesk/internal/provider"

// Handler 前台接口处理器入口
// 说明：所有接口以设备维度识别调用方，登录态由会话令牌决定。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
