package builtin

import (
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// RegisterDefaultConstraints 注册默认约束到管理器
// config 可覆盖软约束权重：soft_pair_weight、delta_order_weight
func RegisterDefaultConstraints(manager *constraint.Manager, limits constraint.Limits, config map[string]interface{}) {
	softPairWeight := getConfigInt(config, "soft_pair_weight", 40)
	deltaOrderWeight := getConfigInt(config, "delta_order_weight", 30)

	// 注册硬约束
	manager.Register(NewSlotAvailabilityConstraint())
	manager.Register(NewDuplicateConstraint())
	manager.Register(NewFixedDayConstraint())
	manager.Register(NewAreaCapacityConstraint(limits.SharedTroopSize))
	manager.Register(NewFleetCapacityConstraint(limits.FleetCapacity))
	manager.Register(NewDayPinConstraint())
	manager.Register(NewStaffCeilingConstraint(limits.StaffCeiling, limits.StaffClusterCeiling))
	manager.Register(NewBeachStaffCapConstraint(limits.BeachStaffCap))
	manager.Register(NewWetTowerAdjacencyConstraint())
	manager.Register(NewWetDryWetConstraint())
	manager.Register(NewSameDayAreaConstraint())
	manager.Register(NewAccuracyPerDayConstraint(limits.MaxAccuracyPerDay))
	manager.Register(NewThreeHourLimitConstraint(limits.MaxThreeHour))
	manager.Register(NewSameDayPairConstraint())
	manager.Register(NewBeachSlotConstraint(limits.BeachRelaxRank))

	// 注册软约束
	manager.Register(NewSoftPairConstraint(softPairWeight))
	manager.Register(NewDeltaOrderConstraint(deltaOrderWeight))
}

// NewDefaultManager 创建并注册默认约束的管理器
func NewDefaultManager(limits constraint.Limits) *constraint.Manager {
	m := constraint.NewManager()
	RegisterDefaultConstraints(m, limits, nil)
	return m
}

// getConfigInt 从配置中获取整数
func getConfigInt(config map[string]interface{}, key string, defaultVal int) int {
	if config == nil {
		return defaultVal
	}
	if val, ok := config[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case int64:
			return int(v)
		}
	}
	return defaultVal
}
