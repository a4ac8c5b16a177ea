package model

import (
	"math"
	"time"
)

// QuotaUnitScale 把接口返回的原始整数额度换算成美元单位。
const QuotaUnitScale = 500000

type BalanceSnapshot struct {
	Quota float64 `json:"quota"`
	Used  float64 `json:"used"`
}

// BalanceReport 按账号键（account_<n>）聚合一轮的余额快照。
type BalanceReport map[string]BalanceSnapshot

type BalanceResult struct {
	Success bool    `json:"success"`
	Quota   float64 `json:"quota,omitempty"`
	Used    float64 `json:"used,omitempty"`
	Err     string  `json:"error,omitempty"`
}

func (r BalanceResult) Snapshot() BalanceSnapshot {
	return BalanceSnapshot{Quota: r.Quota, Used: r.Used}
}

// ScaleQuota 换算原始额度并保留两位小数。
func ScaleQuota(raw int64) float64 {
	return math.Round(float64(raw)/QuotaUnitScale*100) / 100
}

// RunRecord 是一轮签到的历史记录，落到 sqlite 的 runs 表。
type RunRecord struct {
	ID           string
	At           time.Time
	SuccessCount int
	TotalCount   int
	Notified     bool
	Fingerprint  string
}
