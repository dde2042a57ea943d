package public

import "github.com/canyouseeus/thelostandunfounds-sub005/internal/provider"

// Handler 公开接口处理器入口
// 说明：该处理器用于订单事件接入与推广人自助 API。
type Handler struct {
	*provider.Container
}

// New 创建公开接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
