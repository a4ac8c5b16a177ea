package model

import (
	"fmt"
	"strings"
)

type Account struct {
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	Provider string     `json:"provider" yaml:"provider"`
	Cookies  CookieBlob `json:"cookies" yaml:"cookies"`
	APIUser  string     `json:"api_user" yaml:"apiUser"`
}

// DisplayName 返回账号的展示名；没配置 name 时退回 account_<序号>。
func (a Account) DisplayName(index int) string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return fmt.Sprintf("account_%d", index+1)
}
