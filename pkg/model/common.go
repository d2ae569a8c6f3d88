// Package model 定义营地活动排班引擎的核心数据模型
package model

// Ruleset 规则集类型
type Ruleset string

const (
	RulesetTC       Ruleset = "tc"       // 常规营期
	RulesetVoyageur Ruleset = "voyageur" // Voyageur 营期
)

// RulesetFor 根据 Voyageur 标志返回规则集
func RulesetFor(voyageur bool) Ruleset {
	if voyageur {
		return RulesetVoyageur
	}
	return RulesetTC
}

// IsVoyageur 是否是 Voyageur 规则集
func (r Ruleset) IsVoyageur() bool {
	return r == RulesetVoyageur
}
