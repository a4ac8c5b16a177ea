package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// 签到按钮的常见文案（多语言变体）。新站点的变体加在这里即可，查找逻辑不用动。
var actionLabels = []string{"立即签到", "今日签到", "签到", "Check in", "Check In", "Daily Check-in"}

// 宽松兜底用的短子串，放最后一级策略。
var looseLabels = []string{"签到", "Check in"}

// 主操作按钮的常见样式约定，覆盖几个主流组件库。
var primaryButtonSelectors = []string{
	"button[type=submit]",
	".btn-primary",
	".ant-btn-primary",
	".el-button--primary",
	".semi-button-primary",
}

// 纵向偏移小于这个阈值的元素多半是页头/导航栏里的字样，跳过。
const headerOffsetThreshold = 120.0

// 每个策略最多考察前几个匹配，避免在长页面上逐个量几何信息。
const maxCandidates = 5

type strategy struct {
	name string
	find func(p *rod.Page) (rod.Elements, error)
}

// strategies 返回按优先级排列的查找策略，逐个尝试直到命中。
// 全部是数据驱动：文案、标签范围、样式选择器都在上面的变量里。
func strategies() []strategy {
	return []strategy{
		{name: "exact-text", find: func(p *rod.Page) (rod.Elements, error) {
			var out rod.Elements
			for _, label := range actionLabels {
				els, err := p.ElementsX(fmt.Sprintf(`//*[normalize-space(text())=%q]`, label))
				if err != nil {
					continue
				}
				out = append(out, els...)
			}
			return out, nil
		}},
		{name: "tag-scoped-text", find: func(p *rod.Page) (rod.Elements, error) {
			var out rod.Elements
			for _, label := range actionLabels {
				els, err := p.ElementsX(fmt.Sprintf(`//button[contains(., %q)] | //a[contains(., %q)]`, label, label))
				if err != nil {
					continue
				}
				out = append(out, els...)
			}
			return out, nil
		}},
		{name: "primary-button-style", find: func(p *rod.Page) (rod.Elements, error) {
			return p.Elements(strings.Join(primaryButtonSelectors, ", "))
		}},
		{name: "loose-text", find: func(p *rod.Page) (rod.Elements, error) {
			var out rod.Elements
			for _, label := range looseLabels {
				els, err := p.ElementsX(fmt.Sprintf(`//*[contains(text(), %q)]`, label))
				if err != nil {
					continue
				}
				out = append(out, els...)
			}
			return out, nil
		}},
	}
}

// findActionElement 按策略顺序查找可见、可交互的签到按钮。
// 全部落空时返回 nil 和当前可见按钮文案的汇总，便于排查站点改版。
func findActionElement(page *rod.Page, timeout time.Duration) (*rod.Element, string) {
	for _, st := range strategies() {
		var els rod.Elements
		err := rod.Try(func() {
			found, ferr := st.find(page.Timeout(timeout))
			if ferr == nil {
				els = found
			}
		})
		if err != nil || len(els) == 0 {
			continue
		}
		if el := chooseCandidate(els); el != nil {
			return el, ""
		}
	}
	return nil, visibleButtonDump(page, timeout)
}

// chooseCandidate 在前几个可见元素里选一个：优先纵向位置最低的（Y 最大），
// 跳过位置像页头的元素；全军覆没时退回第一个可见的。
func chooseCandidate(els rod.Elements) *rod.Element {
	type candidate struct {
		el *rod.Element
		y  float64
	}
	var cands []candidate
	for i, el := range els {
		if i >= maxCandidates {
			break
		}
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}
		var y float64
		if shape, err := el.Shape(); err == nil && shape.Box() != nil {
			y = shape.Box().Y
		}
		cands = append(cands, candidate{el: el, y: y})
	}
	if len(cands) == 0 {
		return nil
	}

	ys := make([]float64, len(cands))
	for i, c := range cands {
		ys[i] = c.y
	}
	return cands[chooseCandidateIndex(ys)].el
}

// chooseCandidateIndex 是纯几何选择：返回阈值之上 Y 最大者的下标；
// 全部在阈值之内时返回 0。调用方保证 ys 非空。
func chooseCandidateIndex(ys []float64) int {
	best := -1
	for i, y := range ys {
		if y < headerOffsetThreshold {
			continue
		}
		if best < 0 || y > ys[best] {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

func visibleButtonDump(page *rod.Page, timeout time.Duration) string {
	var labels []string
	_ = rod.Try(func() {
		els, err := page.Timeout(timeout).Elements("button")
		if err != nil {
			return
		}
		for i, el := range els {
			if i >= 20 {
				break
			}
			if visible, err := el.Visible(); err != nil || !visible {
				continue
			}
			text, err := el.Text()
			if err != nil {
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				labels = append(labels, text)
			}
		}
	})
	return strings.Join(labels, " | ")
}
