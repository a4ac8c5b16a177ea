package model

import (
	"net/url"
	"strings"
)

// Provider 描述一个目标站点：域名、个人控制台路径、用户信息接口以及
// 传递账号 API 身份所用的请求头名。
type Provider struct {
	Domain          string `json:"domain" yaml:"domain"`
	ConsolePath     string `json:"console_path,omitempty" yaml:"consolePath"`
	UserInfoPath    string `json:"user_info_path" yaml:"userInfoPath"`
	APIUserHeader   string `json:"api_user_key" yaml:"apiUserHeader"`
	CheckinPathHint string `json:"checkin_path_hint,omitempty" yaml:"checkinPathHint"`
}

func (p Provider) ConsoleURL() string {
	path := p.ConsolePath
	if path == "" {
		path = "/console/personal"
	}
	return strings.TrimRight(p.Domain, "/") + path
}

func (p Provider) UserInfoURL() string {
	return strings.TrimRight(p.Domain, "/") + p.UserInfoPath
}

// RootURL 返回站点根地址（scheme://host）。Cookie 注入用根地址，
// 让浏览器把 path 自动设为 /，保证全站生效。
func (p Provider) RootURL() string {
	u, err := url.Parse(p.Domain)
	if err != nil || u.Host == "" {
		return strings.TrimRight(p.Domain, "/")
	}
	return u.Scheme + "://" + u.Host
}

// ActionHint 是签到接口 URL 里的特征子串，用于识别点击后触发的请求。
func (p Provider) ActionHint() string {
	if p.CheckinPathHint != "" {
		return p.CheckinPathHint
	}
	return "checkin"
}
