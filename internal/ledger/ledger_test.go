package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin_engine/internal/model"
)

type fakeStore struct {
	fp     string
	has    bool
	saved  []string
	getErr error
}

func (s *fakeStore) GetBalanceFingerprint(context.Context) (string, bool, error) {
	return s.fp, s.has, s.getErr
}

func (s *fakeStore) SetBalanceFingerprint(_ context.Context, fp string) error {
	s.fp = fp
	s.has = true
	s.saved = append(s.saved, fp)
	return nil
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := model.BalanceReport{
		"account_1": {Quota: 10.5, Used: 1},
		"account_2": {Quota: 3, Used: 2},
	}
	b := model.BalanceReport{
		"account_2": {Quota: 3, Used: 99},
		"account_1": {Quota: 10.5, Used: 0},
	}
	// used 不参与指纹，key 顺序无关。
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 16)
}

func TestFingerprint_QuotaSensitive(t *testing.T) {
	a := model.BalanceReport{"account_1": {Quota: 10}}
	b := model.BalanceReport{"account_1": {Quota: 10.01}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_EmptyReport(t *testing.T) {
	assert.Equal(t, "", Fingerprint(model.BalanceReport{}))
	assert.Equal(t, "", Fingerprint(nil))
}

func TestChanged(t *testing.T) {
	assert.True(t, Changed("", "f1"))
	assert.False(t, Changed("f1", "f1"))
	assert.True(t, Changed("f1", "f2"))
	// 本轮没有指纹时永远不算变化。
	assert.False(t, Changed("f1", ""))
	assert.False(t, Changed("", ""))
}

func TestUpdate_FirstRunPersistsAndChanges(t *testing.T) {
	store := &fakeStore{}
	report := model.BalanceReport{"account_1": {Quota: 5}}

	fp, changed, err := Update(context.Background(), store, report)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, fp, store.fp)
}

func TestUpdate_UnchangedStillPersists(t *testing.T) {
	report := model.BalanceReport{"account_1": {Quota: 5}}
	store := &fakeStore{fp: Fingerprint(report), has: true}

	_, changed, err := Update(context.Background(), store, report)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, store.saved, 1)
}

func TestUpdate_EmptyReportNeverOverwrites(t *testing.T) {
	store := &fakeStore{fp: "oldfp", has: true}

	fp, changed, err := Update(context.Background(), store, model.BalanceReport{})
	require.NoError(t, err)
	assert.Equal(t, "", fp)
	assert.False(t, changed)
	assert.Equal(t, "oldfp", store.fp)
	assert.Empty(t, store.saved)
}

func TestUpdate_ReadErrorTreatedAsFirstRun(t *testing.T) {
	store := &fakeStore{getErr: assert.AnError}
	report := model.BalanceReport{"account_1": {Quota: 5}}

	_, changed, err := Update(context.Background(), store, report)
	require.NoError(t, err)
	assert.True(t, changed)
}
