package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin_engine/internal/ledger"
	"checkin_engine/internal/logbus"
	"checkin_engine/internal/model"
)

type fakeSession struct {
	outcomes map[string]model.CheckInOutcome
	panicOn  string
	calls    []string
}

func (f *fakeSession) Run(_ context.Context, label string, _ model.Provider, _ model.CookieSet) model.CheckInOutcome {
	f.calls = append(f.calls, label)
	if label == f.panicOn {
		panic("browser crashed hard")
	}
	if out, ok := f.outcomes[label]; ok {
		return out
	}
	return model.Succeeded("check-in API confirmed")
}

type fakeProbe struct {
	results map[string]model.BalanceResult
}

func (f *fakeProbe) Fetch(_ context.Context, _ model.Provider, account model.Account, _ model.CookieSet) model.BalanceResult {
	if r, ok := f.results[account.Name]; ok {
		return r
	}
	return model.BalanceResult{Success: false, Err: "no data"}
}

type fakeStore struct {
	fingerprint string
	hasFP       bool
	records     []model.RunRecord
}

func (f *fakeStore) GetBalanceFingerprint(context.Context) (string, bool, error) {
	return f.fingerprint, f.hasFP, nil
}

func (f *fakeStore) SetBalanceFingerprint(_ context.Context, fp string) error {
	f.fingerprint = fp
	f.hasFP = true
	return nil
}

func (f *fakeStore) RecordRun(_ context.Context, rec model.RunRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type fakeNotifier struct {
	titles []string
	bodies []string
}

func (f *fakeNotifier) Push(_ context.Context, title, body string) error {
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
}

func newCoordinator(session *fakeSession, probe *fakeProbe, store *fakeStore, notifier *fakeNotifier) *Coordinator {
	return New(Options{
		Session:  session,
		Probe:    probe,
		Store:    store,
		Notifier: notifier,
		Bus:      logbus.New(),
		Title:    "Check-in Report",
		Now:      fixedNow,
	})
}

func testProviders() map[string]model.Provider {
	return map[string]model.Provider{
		"anyrouter": {Domain: "https://anyrouter.top", UserInfoPath: "/api/user/self", APIUserHeader: "new-api-user"},
	}
}

func account(name string) model.Account {
	return model.Account{Name: name, Provider: "anyrouter", Cookies: model.NewCookieBlob("session=s1")}
}

func TestExecute_NoAccounts(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	coord := newCoordinator(&fakeSession{}, &fakeProbe{}, store, notifier)

	code := coord.Execute(context.Background(), nil, testProviders())

	assert.Equal(t, 1, code)
	assert.Empty(t, notifier.bodies)
	assert.Empty(t, store.records)
}

func TestExecute_PanicIsolation(t *testing.T) {
	session := &fakeSession{panicOn: "b"}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	coord := newCoordinator(session, &fakeProbe{}, store, notifier)

	code := coord.Execute(context.Background(), []model.Account{
		account("a"), account("b"), account("c"),
	}, testProviders())

	// b 崩了也不影响 a/c，整轮退出码看成功数。
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"a", "b", "c"}, session.calls)
	require.Len(t, store.records, 1)
	assert.Equal(t, 2, store.records[0].SuccessCount)
	assert.Equal(t, 3, store.records[0].TotalCount)

	require.Len(t, notifier.bodies, 1)
	assert.Contains(t, notifier.bodies[0], "[FAIL] b: browser crashed hard")
	assert.Contains(t, notifier.bodies[0], "[STATS] Success: 2/3")
}

func TestExecute_MixedOutcomes(t *testing.T) {
	session := &fakeSession{outcomes: map[string]model.CheckInOutcome{
		"a": model.Failure("cookies invalid/expired (redirected to login)"),
		"b": model.AlreadySigned(),
	}}
	probe := &fakeProbe{results: map[string]model.BalanceResult{
		"a": {Success: true, Quota: 10.0, Used: 2.0},
		"b": {Success: false, Err: "HTTP 401"},
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	coord := newCoordinator(session, probe, store, notifier)

	code := coord.Execute(context.Background(), []model.Account{
		account("a"), account("b"),
	}, testProviders())

	// 已签到算成功；签到失败的 a 余额照样进报告。
	assert.Equal(t, 0, code)
	require.Len(t, notifier.bodies, 1)
	body := notifier.bodies[0]
	assert.Contains(t, body, "[STATS] Success: 1/2")
	assert.Contains(t, body, "[TIME] 2025-06-01 09:00:00")
	assert.Contains(t, body, "[FAIL] a: cookies invalid/expired")
	assert.Contains(t, body, "[BALANCE] a\nBalance: $10.00, Used: $2.00")
	assert.NotContains(t, body, "[BALANCE] b")

	require.Len(t, store.records, 1)
	assert.True(t, store.records[0].Notified)
	assert.Equal(t, store.fingerprint, store.records[0].Fingerprint)
	assert.NotEmpty(t, store.fingerprint)
}

func TestExecute_BalanceUnchanged_FailuresStillNotify(t *testing.T) {
	report := model.BalanceReport{"account_1": {Quota: 10.0, Used: 2.0}}
	store := &fakeStore{fingerprint: ledger.Fingerprint(report), hasFP: true}

	session := &fakeSession{outcomes: map[string]model.CheckInOutcome{
		"a": model.Failure("action element not found"),
	}}
	probe := &fakeProbe{results: map[string]model.BalanceResult{
		"a": {Success: true, Quota: 10.0, Used: 2.0},
	}}
	notifier := &fakeNotifier{}
	coord := newCoordinator(session, probe, store, notifier)

	code := coord.Execute(context.Background(), []model.Account{account("a")}, testProviders())

	assert.Equal(t, 1, code)
	require.Len(t, notifier.bodies, 1)
	// 指纹没变：通知只有失败明细，不带余额段。
	assert.NotContains(t, notifier.bodies[0], "[BALANCE]")
	assert.Contains(t, notifier.bodies[0], "[FAIL] a: action element not found")
}

func TestExecute_CleanUnchangedRun_NoNotification(t *testing.T) {
	report := model.BalanceReport{"account_1": {Quota: 5.0}}
	store := &fakeStore{fingerprint: ledger.Fingerprint(report), hasFP: true}

	probe := &fakeProbe{results: map[string]model.BalanceResult{
		"a": {Success: true, Quota: 5.0},
	}}
	notifier := &fakeNotifier{}
	coord := newCoordinator(&fakeSession{}, probe, store, notifier)

	code := coord.Execute(context.Background(), []model.Account{account("a")}, testProviders())

	assert.Equal(t, 0, code)
	assert.Empty(t, notifier.bodies)
	require.Len(t, store.records, 1)
	assert.False(t, store.records[0].Notified)
}

func TestExecute_FirstRun_BalanceChangeTriggersNotification(t *testing.T) {
	store := &fakeStore{}
	probe := &fakeProbe{results: map[string]model.BalanceResult{
		"a": {Success: true, Quota: 5.0, Used: 1.5},
	}}
	notifier := &fakeNotifier{}
	coord := newCoordinator(&fakeSession{}, probe, store, notifier)

	code := coord.Execute(context.Background(), []model.Account{account("a")}, testProviders())

	assert.Equal(t, 0, code)
	require.Len(t, notifier.bodies, 1)
	assert.Contains(t, notifier.bodies[0], "[BALANCE] a\nBalance: $5.00, Used: $1.50")
	assert.True(t, store.hasFP)
}

func TestExecute_AllProbesFail_FingerprintUntouched(t *testing.T) {
	prev := ledger.Fingerprint(model.BalanceReport{"account_1": {Quota: 5.0}})
	store := &fakeStore{fingerprint: prev, hasFP: true}
	notifier := &fakeNotifier{}
	coord := newCoordinator(&fakeSession{}, &fakeProbe{}, store, notifier)

	code := coord.Execute(context.Background(), []model.Account{account("a")}, testProviders())

	assert.Equal(t, 0, code)
	// 空报告不覆盖已有指纹。
	assert.Equal(t, prev, store.fingerprint)
	assert.Empty(t, notifier.bodies)
}

func TestExecute_ProviderMissing(t *testing.T) {
	acc := model.Account{Name: "a", Provider: "nope", Cookies: model.NewCookieBlob("k=v")}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	coord := newCoordinator(&fakeSession{}, &fakeProbe{}, store, notifier)

	code := coord.Execute(context.Background(), []model.Account{acc}, testProviders())

	assert.Equal(t, 1, code)
	require.Len(t, notifier.bodies, 1)
	assert.Contains(t, notifier.bodies[0], "[FAIL] a: provider not found: nope")
}

func TestExecute_UnnamedAccountsUsePositionalKeys(t *testing.T) {
	acc := model.Account{Provider: "anyrouter", Cookies: model.NewCookieBlob("k=v")}
	session := &fakeSession{outcomes: map[string]model.CheckInOutcome{
		"account_1": model.Failure("action element not found"),
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	coord := newCoordinator(session, &fakeProbe{}, store, notifier)

	coord.Execute(context.Background(), []model.Account{acc}, testProviders())

	require.Len(t, notifier.bodies, 1)
	assert.Contains(t, notifier.bodies[0], "[FAIL] account_1:")
}

func TestSummarize(t *testing.T) {
	s := summarize([]accountResult{
		{name: "a", outcome: model.Succeeded("ok")},
		{name: "b", outcome: model.Ambiguous("clicked with no confirming signal")},
		{name: "c", outcome: model.Failure("boom")},
	})

	// 推定成功（点击后无信号）也计入成功。
	assert.Equal(t, 2, s.SuccessCount)
	assert.Equal(t, 1, s.FailureCount)
	assert.Equal(t, 3, s.TotalCount)
	require.Len(t, s.Lines, 1)
	assert.True(t, strings.HasPrefix(s.Lines[0], "[FAIL] c:"))
}
