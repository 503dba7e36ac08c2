package constants

// 商品类型常量
const (
	ItemTypePortfolio = "portfolio"
	ItemTypeBundle    = "bundle"
)

// 计费周期常量
const (
	BillingPeriodMonthly   = "monthly"
	BillingPeriodQuarterly = "quarterly"
	BillingPeriodYearly    = "yearly"
)

// 套餐类别常量
const (
	PlanCategoryBasic      = "basic"
	PlanCategoryPremium    = "premium"
	PlanCategoryIndividual = "individual"
)

// 订阅产品类型常量
const (
	ProductTypePortfolio = "Portfolio"
	ProductTypeBundle    = "Bundle"
)

// 订阅计费方式常量
const (
	SubscriptionKindRegular        = "regular"
	SubscriptionKindYearlyEmandate = "yearlyEmandate"
)

// 访问级别常量
const (
	AccessLevelNone       = "none"
	AccessLevelBasic      = "basic"
	AccessLevelPremium    = "premium"
	AccessLevelIndividual = "individual"
)

// 结账状态常量
const (
	CheckoutStateReview     = "review"
	CheckoutStateProcessing = "processing"
	CheckoutStateSuccess    = "success"
	CheckoutStateError      = "error"
)

// 结账支付方式常量
const (
	CheckoutKindOrder    = "order"
	CheckoutKindEmandate = "emandate"
)

// 结账失败原因常量
const (
	CheckoutFailureCancelled      = "payment_cancelled"
	CheckoutFailureVerifyFailed   = "verification_failed"
	CheckoutFailureVerifyTimedOut = "verification_exhausted"
)
