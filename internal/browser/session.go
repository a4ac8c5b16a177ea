// Package browser 驱动一次浏览器签到：注入 Cookie、导航到个人控制台、
// 识别登录跳转和已签到状态、定位签到按钮、点击并验证结果。
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"checkin_engine/internal/config"
	"checkin_engine/internal/logbus"
	"checkin_engine/internal/model"
)

type Session struct {
	timing config.BrowserConfig
	bus    *logbus.Bus
}

func New(timing config.BrowserConfig, bus *logbus.Bus) *Session {
	return &Session{timing: timing, bus: bus}
}

// Run 对单个账号执行一次完整签到。每次调用启动并销毁一个独立浏览器，
// 账号之间绝不共享会话，避免 Cookie 串号。
// 任何未预料的异常都在这里兜底成 Failed，不会向上抛。
func (s *Session) Run(ctx context.Context, label string, prov model.Provider, cookies model.CookieSet) (outcome model.CheckInOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = model.Failure(fmt.Sprintf("browser error: %v", r))
			s.bus.Log("error", "浏览器会话异常", map[string]any{"account": label, "panic": fmt.Sprint(r)})
		}
	}()

	if len(cookies) == 0 {
		return model.Failure("no cookies configured")
	}

	l := launcher.New().
		Headless(s.timing.HeadlessMode()).
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage")
	controlURL, err := l.Launch()
	if err != nil {
		return model.Failure("launch browser: " + err.Error())
	}
	defer l.Kill()

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return model.Failure("connect browser: " + err.Error())
	}
	defer func() { _ = b.Close() }()

	// 导航之前注入 Cookie：首个请求就要带上登录态。
	// 只给根 URL、不给 path，浏览器会自动设为 / 全站生效。
	if err := injectCookies(b, prov, cookies); err != nil {
		return model.Failure("inject cookies: " + err.Error())
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return model.Failure("open page: " + err.Error())
	}
	if err := s.preparePage(page); err != nil {
		return model.Failure(err.Error())
	}

	s.navigate(page, label, prov.ConsoleURL())

	return s.runFlow(ctx, label, prov, &rodConsole{session: s, page: page})
}

// consolePage 抽象导航完成后签到流程用到的页面操作，
// 真实实现包一个 rod.Page，测试用假实现验证短路顺序。
type consolePage interface {
	currentURL() string
	content() string
	findAction(timeout time.Duration) (found bool, buttonDump string)
	checkIn(ctx context.Context, prov model.Provider) model.CheckInOutcome
}

// runFlow 是导航之后的判定流程：先查登录跳转，再查已签到标记，然后定位按钮并点击验证。
// 前两步命中即短路：登录页上不找按钮，已签到的页面上不点击。
func (s *Session) runFlow(ctx context.Context, label string, prov model.Provider, page consolePage) model.CheckInOutcome {
	// 跳到登录页说明 Cookie 已失效，继续探测没有意义，快速失败。
	if strings.Contains(page.currentURL(), "/login") {
		return model.Failure("cookies invalid/expired (redirected to login)")
	}

	if hasAlreadySignedMarker(page.content()) {
		s.bus.Log("info", "今日已签到", map[string]any{"account": label})
		return model.AlreadySigned()
	}

	found, buttonDump := page.findAction(s.timing.FindTimeout())
	if !found {
		reason := "action element not found"
		if buttonDump != "" {
			reason += "; visible buttons: " + buttonDump
		}
		return model.Failure(reason)
	}

	s.bus.Log("info", "找到签到按钮，开始点击", map[string]any{"account": label})
	return page.checkIn(ctx, prov)
}

type rodConsole struct {
	session *Session
	page    *rod.Page
	el      *rod.Element
}

func (c *rodConsole) currentURL() string {
	info, err := c.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (c *rodConsole) content() string {
	return pageContent(c.page)
}

func (c *rodConsole) findAction(timeout time.Duration) (bool, string) {
	el, dump := findActionElement(c.page, timeout)
	c.el = el
	return el != nil, dump
}

func (c *rodConsole) checkIn(ctx context.Context, prov model.Provider) model.CheckInOutcome {
	return c.session.clickAndVerify(ctx, c.page, prov, c.el)
}

func injectCookies(b *rod.Browser, prov model.Provider, cookies model.CookieSet) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for name, value := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:  name,
			Value: value,
			URL:   prov.RootURL(),
		})
	}
	return b.SetCookies(params)
}

func (s *Session) preparePage(page *rod.Page) error {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.timing.UserAgent}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.timing.ViewportWidth,
		Height:            s.timing.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return nil
}

// navigate 打开个人控制台。导航失败（超时/DNS/TLS）只记日志不终止：
// 很多控制台是前端渲染，名义上超时之后页面往往还能继续加载完。
func (s *Session) navigate(page *rod.Page, label, target string) {
	err := rod.Try(func() {
		p := page.Timeout(s.timing.NavTimeout())
		waitDom := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
		p.MustNavigate(target)
		waitDom()
	})
	if err != nil {
		s.bus.Log("warn", "页面加载告警", map[string]any{
			"account": label,
			"error":   model.Truncate(err.Error(), 80),
		})
	}

	_ = rod.Try(func() { _ = page.WaitIdle(s.timing.IdleTimeout()) })
	time.Sleep(s.timing.SettleDelay())
}

func pageContent(page *rod.Page) string {
	html, err := page.HTML()
	if err != nil {
		return ""
	}
	return html
}
