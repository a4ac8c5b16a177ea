// Package ledger 负责余额指纹：把一轮的余额报告压成一个短哈希，
// 跨轮比较来决定要不要把余额明细写进通知。
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"checkin_engine/internal/model"
)

// FingerprintStore 是指纹的持久化能力，跨轮只存这一个值。
type FingerprintStore interface {
	GetBalanceFingerprint(ctx context.Context) (string, bool, error)
	SetBalanceFingerprint(ctx context.Context, fp string) error
}

const fingerprintLen = 16

// Fingerprint 只取各账号的 quota（used 变化不触发通知），
// 序列化成 key 排序的紧凑 JSON 后哈希并截短。空报告返回空串。
func Fingerprint(report model.BalanceReport) string {
	if len(report) == 0 {
		return ""
	}
	quotas := make(map[string]float64, len(report))
	for key, snap := range report {
		quotas[key] = snap.Quota
	}
	// encoding/json 对 map key 排序且无多余空白，天然满足确定性要求。
	b, err := json.Marshal(quotas)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// Changed 在没有历史指纹（首轮）或指纹不同时为 true。
// 当前指纹为空（整轮余额全部拉取失败）时恒为 false。
func Changed(prev, cur string) bool {
	if cur == "" {
		return false
	}
	return prev == "" || prev != cur
}

// Update 计算当前报告的指纹，对比并持久化。
// 空报告不落盘——一轮全失败不应该抹掉历史指纹。
// 历史指纹读取失败按“不存在”处理（等价于首轮）。
func Update(ctx context.Context, store FingerprintStore, report model.BalanceReport) (fp string, changed bool, err error) {
	fp = Fingerprint(report)
	if fp == "" {
		return "", false, nil
	}

	prev, ok, readErr := store.GetBalanceFingerprint(ctx)
	if readErr != nil || !ok {
		prev = ""
	}
	changed = Changed(prev, fp)

	if err := store.SetBalanceFingerprint(ctx, fp); err != nil {
		return fp, changed, err
	}
	return fp, changed, nil
}
