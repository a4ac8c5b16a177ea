package model

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// CookieSet 是规范化后的 Cookie 集合（name → value）。
type CookieSet map[string]string

// CookieBlob 承载账号配置里的原始 Cookie 输入：
// 既可以是 name→value 的映射，也可以是 "k1=v1; k2=v2" 这种分号分隔的字符串。
type CookieBlob struct {
	raw any
}

func NewCookieBlob(v any) CookieBlob {
	return CookieBlob{raw: v}
}

func (b *CookieBlob) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	b.raw = v
	return nil
}

func (b *CookieBlob) UnmarshalYAML(value *yaml.Node) error {
	var v any
	if err := value.Decode(&v); err != nil {
		return err
	}
	b.raw = v
	return nil
}

// Normalize 把任意形式的 Cookie 输入规范成 CookieSet。
// 不认识的类型返回空集合而不是报错——后续会体现为该账号签到失败。
func (b CookieBlob) Normalize() CookieSet {
	switch v := b.raw.(type) {
	case map[string]string:
		out := make(CookieSet, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case map[string]any:
		out := make(CookieSet, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
			} else {
				out[k] = fmt.Sprint(val)
			}
		}
		return out
	case string:
		return ParseCookieString(v)
	default:
		return CookieSet{}
	}
}

// ParseCookieString 解析分号分隔的 Cookie 字符串。
// 每段只在第一个 = 处切开，两侧去空白；没有 = 的段直接丢弃。
func ParseCookieString(s string) CookieSet {
	out := CookieSet{}
	for _, seg := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

func (c CookieSet) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(c))
	for name, value := range c {
		out = append(out, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	return out
}
