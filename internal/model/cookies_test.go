package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCookieString(t *testing.T) {
	got := ParseCookieString("a=1;b=2; c=3")
	assert.Equal(t, CookieSet{"a": "1", "b": "2", "c": "3"}, got)
}

func TestParseCookieString_FirstEqualsOnly(t *testing.T) {
	got := ParseCookieString("session=abc=def; token=x")
	assert.Equal(t, "abc=def", got["session"])
	assert.Equal(t, "x", got["token"])
}

func TestParseCookieString_DropsSegmentsWithoutEquals(t *testing.T) {
	got := ParseCookieString("a=1; garbage; b=2")
	assert.Equal(t, CookieSet{"a": "1", "b": "2"}, got)
}

func TestCookieBlob_NormalizeMapping(t *testing.T) {
	blob := NewCookieBlob(map[string]any{"session": "xyz", "uid": "42"})
	assert.Equal(t, CookieSet{"session": "xyz", "uid": "42"}, blob.Normalize())
}

func TestCookieBlob_NormalizeString(t *testing.T) {
	blob := NewCookieBlob("a=1; b=2")
	assert.Equal(t, CookieSet{"a": "1", "b": "2"}, blob.Normalize())
}

func TestCookieBlob_NormalizeUnknownType(t *testing.T) {
	blob := NewCookieBlob(12345)
	assert.Empty(t, blob.Normalize())

	blob = NewCookieBlob(nil)
	assert.Empty(t, blob.Normalize())
}

func TestCookieBlob_UnmarshalJSON(t *testing.T) {
	var account Account
	raw := `{"provider":"anyrouter","cookies":{"session":"s1"},"api_user":"u1"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &account))
	assert.Equal(t, CookieSet{"session": "s1"}, account.Cookies.Normalize())

	raw = `{"provider":"anyrouter","cookies":"session=s2; uid=7","api_user":"u2"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &account))
	assert.Equal(t, CookieSet{"session": "s2", "uid": "7"}, account.Cookies.Normalize())
}

func TestCookieSet_HTTPCookies(t *testing.T) {
	set := CookieSet{"a": "1"}
	cookies := set.HTTPCookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "a", cookies[0].Name)
	assert.Equal(t, "1", cookies[0].Value)
}

func TestAccountDisplayName(t *testing.T) {
	assert.Equal(t, "主号", Account{Name: "主号"}.DisplayName(0))
	assert.Equal(t, "account_3", Account{}.DisplayName(2))
}
