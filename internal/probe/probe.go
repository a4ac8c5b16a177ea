// Package probe 走 HTTP 通道查询账号余额。和浏览器签到互相独立：
// 签到失败的账号余额可能照样查得到，反过来也一样。
package probe

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"checkin_engine/internal/config"
	"checkin_engine/internal/logbus"
	"checkin_engine/internal/model"
)

// 错误文案的上限，保证通知正文不被撑爆。
const errTextLimit = 50

type Probe struct {
	cfg     config.ProbeConfig
	limiter *rate.Limiter
	bus     *logbus.Bus
}

func New(cfg config.ProbeConfig, bus *logbus.Bus) *Probe {
	return &Probe{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.QPS), cfg.Burst),
		bus:     bus,
	}
}

type userInfoResp struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		Quota     int64 `json:"quota"`
		UsedQuota int64 `json:"used_quota"`
	} `json:"data"`
}

// Fetch 查询一个账号的当前额度。任何失败都折叠成 Success=false 的结果，
// 不会向上抛异常。
func (p *Probe) Fetch(ctx context.Context, prov model.Provider, account model.Account, cookies model.CookieSet) (result model.BalanceResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failure(fmt.Sprint(r))
		}
	}()

	if err := p.limiter.Wait(ctx); err != nil {
		return failure(err.Error())
	}

	client := resty.New().
		SetBaseURL(prov.Domain).
		SetTimeout(p.cfg.Timeout()).
		SetRetryCount(p.cfg.Retry.Count).
		SetRetryWaitTime(p.cfg.Retry.Wait()).
		SetRetryMaxWaitTime(p.cfg.Retry.MaxWait()).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode() >= 500
		})

	var out userInfoResp
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("User-Agent", p.cfg.UserAgent).
		SetHeader("Referer", prov.Domain).
		SetHeader(prov.APIUserHeader, account.APIUser).
		SetCookies(cookies.HTTPCookies()).
		SetResult(&out).
		Get(prov.UserInfoPath)
	if err != nil {
		return failure(err.Error())
	}
	if resp.StatusCode() != 200 {
		return failure(fmt.Sprintf("HTTP %d", resp.StatusCode()))
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "user info not available"
		}
		return failure(msg)
	}

	return model.BalanceResult{
		Success: true,
		Quota:   model.ScaleQuota(out.Data.Quota),
		Used:    model.ScaleQuota(out.Data.UsedQuota),
	}
}

func failure(msg string) model.BalanceResult {
	return model.BalanceResult{Success: false, Err: model.Truncate(msg, errTextLimit)}
}
