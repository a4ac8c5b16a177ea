// Package runner 串行跑完所有账号的签到与余额查询，聚合结果，
// 驱动余额指纹比较，并决定要不要发通知。
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"checkin_engine/internal/ledger"
	"checkin_engine/internal/logbus"
	"checkin_engine/internal/model"
	"checkin_engine/internal/notify"
)

type CheckInRunner interface {
	Run(ctx context.Context, label string, prov model.Provider, cookies model.CookieSet) model.CheckInOutcome
}

type BalanceFetcher interface {
	Fetch(ctx context.Context, prov model.Provider, account model.Account, cookies model.CookieSet) model.BalanceResult
}

// Store 聚合协调器需要的持久化能力：指纹读写 + 运行历史。
type Store interface {
	ledger.FingerprintStore
	RecordRun(ctx context.Context, rec model.RunRecord) error
}

type Options struct {
	Session  CheckInRunner
	Probe    BalanceFetcher
	Store    Store
	Notifier notify.Notifier
	Bus      *logbus.Bus
	Title    string
	// Now 注入时钟，测试用；缺省 time.Now。
	Now func() time.Time
}

type Coordinator struct {
	session  CheckInRunner
	probe    BalanceFetcher
	store    Store
	notifier notify.Notifier
	bus      *logbus.Bus
	title    string
	now      func() time.Time
}

func New(opts Options) *Coordinator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	title := opts.Title
	if title == "" {
		title = "Check-in Report"
	}
	return &Coordinator{
		session:  opts.Session,
		probe:    opts.Probe,
		store:    opts.Store,
		notifier: opts.Notifier,
		bus:      opts.Bus,
		title:    title,
		now:      now,
	}
}

// RunSummary 由逐账号结果折叠而来，没有跨账号的共享可变状态。
type RunSummary struct {
	SuccessCount int
	FailureCount int
	TotalCount   int
	Lines        []string
}

type accountResult struct {
	name    string
	outcome model.CheckInOutcome
	balance model.BalanceResult
}

// Execute 顺序处理所有账号并返回进程退出码：
// 至少一个账号签到成功（含已签/推定成功）为 0，否则为 1。
func (c *Coordinator) Execute(ctx context.Context, accounts []model.Account, providers map[string]model.Provider) int {
	if len(accounts) == 0 {
		c.bus.Log("error", "没有配置任何账号", nil)
		return 1
	}
	c.bus.Log("info", "开始执行签到", map[string]any{"accounts": len(accounts)})

	results := make([]accountResult, 0, len(accounts))
	report := model.BalanceReport{}

	for i, account := range accounts {
		res := c.processAccount(ctx, i, account, providers)
		results = append(results, res)
		if res.balance.Success {
			report[accountKey(i)] = res.balance.Snapshot()
		}
	}

	summary := summarize(results)

	fp, changed, err := ledger.Update(ctx, c.store, report)
	if err != nil {
		c.bus.Log("warn", "余额指纹保存失败", map[string]any{"error": err.Error()})
	}
	if changed {
		c.bus.Log("info", "检测到余额变化", map[string]any{"fingerprint": fp})
		// 余额明细按账号顺序追加，只在指纹变化时出现在通知里。
		for i, account := range accounts {
			snap, ok := report[accountKey(i)]
			if !ok {
				continue
			}
			summary.Lines = append(summary.Lines, fmt.Sprintf(
				"[BALANCE] %s\nBalance: $%.2f, Used: $%.2f",
				account.DisplayName(i), snap.Quota, snap.Used))
		}
	}

	notified := false
	if (summary.FailureCount > 0 || changed) && len(summary.Lines) > 0 {
		if err := c.notifier.Push(ctx, c.title, c.renderBody(summary)); err != nil {
			c.bus.Log("warn", "通知发送失败", map[string]any{"error": err.Error()})
		} else {
			notified = true
		}
	}

	if err := c.store.RecordRun(ctx, model.RunRecord{
		ID:           uuid.NewString(),
		At:           c.now(),
		SuccessCount: summary.SuccessCount,
		TotalCount:   summary.TotalCount,
		Notified:     notified,
		Fingerprint:  fp,
	}); err != nil {
		c.bus.Log("warn", "运行记录保存失败", map[string]any{"error": err.Error()})
	}

	c.bus.Log("info", "本轮签到结束", map[string]any{
		"success": summary.SuccessCount,
		"total":   summary.TotalCount,
	})

	if summary.SuccessCount > 0 {
		return 0
	}
	return 1
}

// processAccount 处理单个账号。任何 panic 都在这里兜底成失败记录，
// 不影响后续账号。
func (c *Coordinator) processAccount(ctx context.Context, index int, account model.Account, providers map[string]model.Provider) (res accountResult) {
	name := account.DisplayName(index)
	res.name = name
	defer func() {
		if r := recover(); r != nil {
			res.outcome = model.Failure(model.Truncate(fmt.Sprint(r), 50))
			c.bus.Log("error", "账号处理异常", map[string]any{"account": name, "panic": fmt.Sprint(r)})
		}
	}()

	c.bus.Log("info", "开始处理账号", map[string]any{"account": name, "provider": account.Provider})

	prov, ok := providers[account.Provider]
	if !ok {
		res.outcome = model.Failure("provider not found: " + account.Provider)
		return res
	}

	cookies := account.Cookies.Normalize()

	res.outcome = c.session.Run(ctx, name, prov, cookies)
	if res.outcome.OK() {
		c.bus.Log("info", "签到成功", map[string]any{"account": name, "status": string(res.outcome.Status)})
	} else {
		c.bus.Log("warn", "签到失败", map[string]any{"account": name, "reason": res.outcome.Reason})
	}

	// 余额查询独立于签到结果：Cookie 对 API 通道可能仍然有效。
	res.balance = c.probe.Fetch(ctx, prov, account, cookies)
	if res.balance.Success {
		c.bus.Log("info", "余额", map[string]any{
			"account": name,
			"quota":   res.balance.Quota,
			"used":    res.balance.Used,
		})
	} else {
		c.bus.Log("warn", "余额查询失败", map[string]any{"account": name, "error": res.balance.Err})
	}
	return res
}

func summarize(results []accountResult) RunSummary {
	s := RunSummary{TotalCount: len(results)}
	for _, r := range results {
		if r.outcome.OK() {
			s.SuccessCount++
			continue
		}
		s.FailureCount++
		s.Lines = append(s.Lines, fmt.Sprintf("[FAIL] %s: %s", r.name, r.outcome.Reason))
	}
	return s
}

func (c *Coordinator) renderBody(s RunSummary) string {
	header := fmt.Sprintf("[STATS] Success: %d/%d\n[TIME] %s",
		s.SuccessCount, s.TotalCount, c.now().Format("2006-01-02 15:04:05"))
	return strings.Join(append([]string{header}, s.Lines...), "\n\n")
}

func accountKey(index int) string {
	return fmt.Sprintf("account_%d", index+1)
}
