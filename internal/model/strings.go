package model

// Truncate 把错误/提示文案裁到有界长度，保证通知正文不被撑爆。
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
