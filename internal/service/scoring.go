package service

import (
	"math"

	"sat_prep_backend/internal/model"
)

// 自适应难度阈值：模块1正确率 < 0.40 → easy，< 0.75 → medium，否则 hard
const (
	easyThreshold = 0.40
	hardThreshold = 0.75
)

// 区分数换算权重：模块2针对考生水平自适应出题，所以权重更高；
// 被路由到更难/更易档位的考生得到小幅加/减分
const (
	module1Weight  = 0.4
	module2Weight  = 0.6
	hardAdjustment = 0.03
)

// SelectDifficulty 由模块1的正确率决定模块2的难度档位。纯函数，无随机性。
func SelectDifficulty(percent float64) model.Difficulty {
	switch {
	case percent < easyThreshold:
		return model.DifficultyEasy
	case percent < hardThreshold:
		return model.DifficultyMedium
	default:
		return model.DifficultyHard
	}
}

// ScaleSection 把一个区两个模块的正确率换算成 200-800 的标准分。
// combined = clamp(0.4*m1 + 0.6*m2 + adj, 0, 1)，adj 按模块2难度 ±0.03。
func ScaleSection(module1Percent, module2Percent float64, module2Difficulty model.Difficulty) int {
	adjustment := 0.0
	switch module2Difficulty {
	case model.DifficultyHard:
		adjustment = hardAdjustment
	case model.DifficultyEasy:
		adjustment = -hardAdjustment
	}

	combined := module1Weight*module1Percent + module2Weight*module2Percent + adjustment
	combined = clamp(combined, 0, 1)

	return int(math.Round(200 + 600*combined))
}

// ScaleLinear 整区正确率的线性换算，只用于缺失模块级记录的历史会话的
// 降级兜底，正常自适应流程一律走 ScaleSection。
//
// Deprecated: 保留做兼容，不要在新流程中使用。
func ScaleLinear(percent float64) int {
	return int(math.Round(clamp(percent*800, 0, 800)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
