package response

const (
	CodeOK              = 0
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429
	CodeInternal        = 500

	// 业务状态码
	CodeCartInvalid       = 1001 // 购物车项参数非法
	CodeCartUpdateFailed  = 1002 // 服务端购物车变更失败
	CodeCheckoutState     = 2001 // 结账状态机非法迁移
	CodeCheckoutEmptyCart = 2002 // 空购物车结账
	CodeVerifyFailed      = 2003 // 支付核验失败
	CodeVerifyExhausted   = 2004 // 支付核验重试耗尽
	CodeUpstreamFailed    = 3001 // 上游平台不可用
)
