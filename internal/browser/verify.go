package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"checkin_engine/internal/model"
)

// 页面/回包里表示“今天已经签过”的标记（分站点语言变体）。
var alreadySignedMarkers = []string{"已签到", "今日已签", "already checked in", "already signed in"}

// 点击之后页面上的成功字样。
var successMarkers = []string{"签到成功", "check-in successful", "checked in successfully"}

func hasAlreadySignedMarker(content string) bool {
	return containsAnyFold(content, alreadySignedMarkers)
}

func hasSuccessMarker(content string) bool {
	return containsAnyFold(content, successMarkers)
}

func containsAnyFold(content string, markers []string) bool {
	lower := strings.ToLower(content)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

type checkinResponse struct {
	status int
	body   []byte
}

// clickAndVerify 点击按钮，同时用请求劫持在限定时间内等待签到接口的 POST 回包。
// 等不到回包时退回页面内容复查；点击没报错也没有反面信号的按策略计成功。
func (s *Session) clickAndVerify(ctx context.Context, page *rod.Page, prov model.Provider, el *rod.Element) model.CheckInOutcome {
	respCh := make(chan checkinResponse, 1)

	router := page.HijackRequests()
	router.MustAdd("*"+prov.ActionHint()+"*", func(h *rod.Hijack) {
		if h.Request.Req().Method != http.MethodPost {
			h.ContinueRequest(&proto.FetchContinueRequest{})
			return
		}
		if err := h.LoadResponse(http.DefaultClient, true); err != nil {
			return
		}
		payload := h.Response.Payload()
		select {
		case respCh <- checkinResponse{status: payload.ResponseCode, body: payload.Body}:
		default:
		}
	})
	go router.Run()
	defer func() { _ = router.Stop() }()

	clickErr := rod.Try(func() {
		el.Timeout(s.timing.ClickTimeout()).MustClick()
	})

	select {
	case resp := <-respCh:
		return verdictFromResponse(resp.status, resp.body)
	case <-time.After(s.timing.VerifyTimeout()):
	case <-ctx.Done():
		return model.Failure("cancelled while waiting for check-in response")
	}

	// 没拿到回包：稍等后复查页面内容。
	time.Sleep(s.timing.RescanDelay())
	content := pageContent(page)
	if hasAlreadySignedMarker(content) || hasSuccessMarker(content) {
		return model.Succeeded("confirmed by page content")
	}

	reason := "clicked with no confirming signal"
	if clickErr != nil {
		reason = "click raised (" + model.Truncate(clickErr.Error(), 50) + ") with no confirming signal"
	}
	return model.Ambiguous(reason)
}

// verdictFromResponse 根据签到接口的回包裁定结果。
// 2xx 且 body 不是 JSON 时按成功处理：点击已确认、没有反证。
func verdictFromResponse(status int, body []byte) model.CheckInOutcome {
	if status < 200 || status >= 300 {
		return model.Failure(fmt.Sprintf("check-in endpoint returned HTTP %d", status))
	}

	var parsed struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.Succeeded("check-in request accepted")
	}

	msg := parsed.Message
	if msg == "" {
		msg = parsed.Msg
	}
	if hasAlreadySignedMarker(msg) {
		return model.AlreadySigned()
	}
	if parsed.Success != nil {
		if *parsed.Success {
			return model.Succeeded("check-in API confirmed")
		}
		// 接口明确说失败，这是反面信号，不走推定成功。
		if msg == "" {
			msg = "check-in API returned success=false"
		}
		return model.Failure(model.Truncate(msg, 50))
	}
	return model.Succeeded("check-in request accepted")
}
