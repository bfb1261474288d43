package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterjob/internal/types"
)

func newTestResolver(dir *fakeDirectory, subs *fakeSubscriptionStore) *QuantityResolver {
	return NewQuantityResolver(subs, dir, nil)
}

func contosoSubs() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{subs: map[string]types.Subscription{
		"sub-1": {ID: "sub-1", Name: "Contoso", PurchaserTenantID: "tenant-1"},
	}}
}

func TestResolve_UsesLiveCount(t *testing.T) {
	dir := &fakeDirectory{counts: map[string]int64{"tenant-1": 17}}
	task := newTask(1, types.FrequencyHourly, time.Now(), nil)
	task.Quantity = 3

	qty, skipped, err := newTestResolver(dir, contosoSubs()).Resolve(context.Background(), task)
	require.NoError(t, err)
	assert.Nil(t, skipped)
	assert.Equal(t, 17.0, qty)
	assert.Equal(t, []string{"tenant-1"}, dir.calls)
}

func TestResolve_MissingSubscription(t *testing.T) {
	dir := &fakeDirectory{}
	task := newTask(1, types.FrequencyHourly, time.Now(), nil)
	task.SubscriptionID = "unknown"

	_, skipped, err := newTestResolver(dir, contosoSubs()).Resolve(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, skipped)
	assert.Equal(t, types.OutcomeSkipped, skipped.Kind)
	assert.Equal(t, types.SkipLookup, skipped.Reason)
	assert.Equal(t, "SubRepo.GetById", skipped.RequestJSON)
	assert.Equal(t, "NULL TenantSubs", skipped.ResponseJSON)
	assert.Empty(t, dir.calls)
}

func TestResolve_SubscriptionStoreError(t *testing.T) {
	subs := &fakeSubscriptionStore{err: types.NewAppError(types.ErrCodeInternalDB, "boom", nil)}

	_, skipped, err := newTestResolver(&fakeDirectory{}, subs).Resolve(context.Background(), newTask(1, types.FrequencyHourly, time.Now(), nil))
	require.Error(t, err)
	assert.Nil(t, skipped)
}

func TestResolve_DirectoryErrorCarriesBody(t *testing.T) {
	dir := &fakeDirectory{errs: map[string]error{"tenant-1": &types.DirectoryError{
		TenantID:   "tenant-1",
		HTTPStatus: 403,
		Message:    "Authorization_RequestDenied: Insufficient privileges",
		RawBody:    `{"error":{"code":"Authorization_RequestDenied"}}`,
	}}}

	_, skipped, err := newTestResolver(dir, contosoSubs()).Resolve(context.Background(), newTask(1, types.FrequencyHourly, time.Now(), nil))
	require.NoError(t, err)
	require.NotNil(t, skipped)
	assert.Equal(t, types.SkipLookup, skipped.Reason)
	assert.Equal(t, "Authorization_RequestDenied: Insufficient privileges", skipped.RequestJSON)
	assert.Equal(t, `{"error":{"code":"Authorization_RequestDenied"}}`, skipped.ResponseJSON)
}

func TestResolve_PlainDirectoryError(t *testing.T) {
	dir := &fakeDirectory{errs: map[string]error{"tenant-1": errors.New("dial tcp: timeout")}}

	_, skipped, err := newTestResolver(dir, contosoSubs()).Resolve(context.Background(), newTask(1, types.FrequencyHourly, time.Now(), nil))
	require.NoError(t, err)
	require.NotNil(t, skipped)
	assert.Equal(t, "dial tcp: timeout", skipped.RequestJSON)
}

func TestResolve_NonPositiveCount(t *testing.T) {
	for _, count := range []int64{0, -1} {
		dir := &fakeDirectory{counts: map[string]int64{"tenant-1": count}}

		_, skipped, err := newTestResolver(dir, contosoSubs()).Resolve(context.Background(), newTask(1, types.FrequencyHourly, time.Now(), nil))
		require.NoError(t, err)
		require.NotNil(t, skipped)
		assert.Equal(t, types.SkipQuantity, skipped.Reason)
		assert.Equal(t, "QtyRequest", skipped.RequestJSON)
		assert.Equal(t, "New Qty was <=0", skipped.ResponseJSON)
	}
}
