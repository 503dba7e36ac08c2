package models

import "github.com/foliodesk/internal/constants"

// SubscriptionAccess 派生的访问决策
// 由访问解析服务从活跃订阅集合推导，不直接持久化
type SubscriptionAccess struct {
	HasBasic        bool     `json:"has_basic"`
	HasPremium      bool     `json:"has_premium"`
	PortfolioAccess []string `json:"portfolio_access"`
	Level           string   `json:"subscription_type"`
}

// ZeroAccess 返回无任何权限的访问决策
func ZeroAccess() *SubscriptionAccess {
	return &SubscriptionAccess{
		PortfolioAccess: []string{},
		Level:           constants.AccessLevelNone,
	}
}

// ResolveLevel 按 premium > basic > individual > none 的优先级归类
func (a *SubscriptionAccess) ResolveLevel() string {
	switch {
	case a.HasPremium:
		return constants.AccessLevelPremium
	case a.HasBasic:
		return constants.AccessLevelBasic
	case len(a.PortfolioAccess) > 0:
		return constants.AccessLevelIndividual
	}
	return constants.AccessLevelNone
}

// HasPortfolioAccess 判断是否可访问指定组合
// premium 覆盖全部组合，付费内容必须经由此判断
func (a *SubscriptionAccess) HasPortfolioAccess(portfolioID string) bool {
	if a == nil {
		return false
	}
	if a.HasPremium {
		return true
	}
	for _, id := range a.PortfolioAccess {
		if id == portfolioID {
			return true
		}
	}
	return false
}
