/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package payrec

import (
	"context"
	"testing"
	"time"

	"github.com/blnkfinance/payrec/database"
	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNextRetryBacksOffExponentially(t *testing.T) {
	var delays []time.Duration
	for attempt := 1; attempt < 5; attempt++ {
		status, next := NextRetry(attempt, 5, time.Minute, testNow)
		require.Equal(t, model.SyncPending, status)
		delays = append(delays, next.Sub(testNow))
	}
	assert.Equal(t, []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute, 8 * time.Minute}, delays)

	status, next := NextRetry(5, 5, time.Minute, testNow)
	assert.Equal(t, model.SyncFailed, status)
	assert.Equal(t, testNow, next)
}

func TestEnqueueSyncValidates(t *testing.T) {
	env := newTestEnv(t, "")

	_, _, err := env.payrec.EnqueueSync(context.Background(), SyncRequest{Type: "refund", ResourceID: "1"})
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))

	_, _, err = env.payrec.EnqueueSync(context.Background(), SyncRequest{Type: model.SyncOrder, ResourceID: " "})
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))

	env.ds.AssertNotCalled(t, "EnqueueSync", mock.Anything, mock.Anything)
}

func TestEnqueueSyncStoresPendingItem(t *testing.T) {
	env := newTestEnv(t, "")

	env.ds.On("EnqueueSync", mock.Anything, mock.MatchedBy(func(item *model.SyncQueueItem) bool {
		return item.Type == model.SyncOrder && item.ResourceID == "456" &&
			item.Status == model.SyncPending && item.MaxAttempts == 5 &&
			item.NextRetryAt.Equal(testNow) && string(item.Payload) == `{"event":"order/paid"}`
	})).Return(&model.SyncQueueItem{ID: 7, Type: model.SyncOrder, ResourceID: "456"}, true, nil)

	item, created, err := env.payrec.EnqueueSync(context.Background(), SyncRequest{
		Type:       model.SyncOrder,
		ResourceID: "456",
		Payload:    map[string]string{"event": "order/paid"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), item.ID)
	env.ds.AssertExpectations(t)
}

func TestFailedItemIsRetriedUntilOutOfAttempts(t *testing.T) {
	env := newTestEnv(t, "")
	cause := apierror.NewAPIError(apierror.ErrUpstream, "store timed out", nil)

	var schedule []time.Time
	for attempt := 1; attempt <= 5; attempt++ {
		item := &model.SyncQueueItem{ID: 9, Attempts: attempt, MaxAttempts: 5}
		env.ds.On("FailSync", mock.Anything, int64(9), mock.Anything, mock.Anything, cause.Error()).Return(nil).Once()

		status, err := env.payrec.failSync(context.Background(), item, cause)
		require.NoError(t, err)

		if attempt < 5 {
			assert.Equal(t, model.SyncPending, status)
		} else {
			assert.Equal(t, model.SyncFailed, status)
		}
	}

	for _, c := range env.ds.Calls {
		if c.Method == "FailSync" {
			schedule = append(schedule, c.Arguments.Get(3).(time.Time))
		}
	}
	require.Len(t, schedule, 5)
	for i := 1; i < 4; i++ {
		assert.True(t, schedule[i].After(schedule[i-1]), "retry times must strictly increase")
	}
	assert.Equal(t, testNow.Add(8*time.Minute), schedule[3])
	env.ds.AssertExpectations(t)
}

func TestInvalidInputFailsImmediately(t *testing.T) {
	env := newTestEnv(t, "")
	cause := apierror.NewAPIError(apierror.ErrInvalidInput, "remote order has no order number", nil)
	env.ds.On("FailSync", mock.Anything, int64(3), model.SyncFailed, testNow, cause.Error()).Return(nil)

	status, err := env.payrec.failSync(context.Background(), &model.SyncQueueItem{ID: 3, Attempts: 1, MaxAttempts: 5}, cause)
	require.NoError(t, err)
	assert.Equal(t, model.SyncFailed, status)
	env.ds.AssertExpectations(t)
}

func TestSyncQueueStatsCoversTrailingDay(t *testing.T) {
	env := newTestEnv(t, "")
	stats := &model.SyncQueueStats{Pending: 2, Failed: 1}
	env.ds.On("SyncQueueStats", mock.Anything, testNow.Add(-24*time.Hour)).Return(stats, nil)

	got, err := env.payrec.SyncQueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats, got)
}

func TestCleanupUsesRetentionWindow(t *testing.T) {
	env := newTestEnv(t, "")
	env.ds.On("CleanupSync", mock.Anything, testNow.Add(-7*24*time.Hour)).Return(int64(4), nil)

	n, err := env.payrec.CleanupSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestDrainStopsWhenQueueIsEmpty(t *testing.T) {
	env := newTestEnv(t, "")
	env.ds.On("DequeueSync", mock.Anything, testNow).Return(nil, database.ErrQueueEmpty)

	var result model.SyncResult
	require.NoError(t, env.payrec.drainSyncQueue(context.Background(), 10, &result))
	assert.Zero(t, result.Processed)
}

func TestDrainFailsItemAndContinues(t *testing.T) {
	env := newTestEnv(t, "")
	env.platform.err = apierror.NewAPIError(apierror.ErrUpstream, "store down", nil)

	env.ds.On("DequeueSync", mock.Anything, testNow).
		Return(&model.SyncQueueItem{ID: 1, Type: model.SyncOrder, ResourceID: "456", Attempts: 1, MaxAttempts: 5}, nil).Once()
	env.ds.On("DequeueSync", mock.Anything, testNow).Return(nil, database.ErrQueueEmpty).Once()
	env.ds.On("FailSync", mock.Anything, int64(1), model.SyncPending, testNow.Add(time.Minute), mock.Anything).Return(nil)

	var result model.SyncResult
	require.NoError(t, env.payrec.drainSyncQueue(context.Background(), 10, &result))
	assert.Equal(t, model.SyncResult{Processed: 1, Failed: 1}, result)
	env.ds.AssertExpectations(t)
}

func TestDrainIsBoundedByBatchSize(t *testing.T) {
	env := newTestEnv(t, "")
	env.platform.err = apierror.NewAPIError(apierror.ErrUpstream, "store down", nil)

	env.ds.On("DequeueSync", mock.Anything, testNow).
		Return(&model.SyncQueueItem{ID: 1, Type: model.SyncOrder, ResourceID: "456", Attempts: 1, MaxAttempts: 5}, nil)
	env.ds.On("FailSync", mock.Anything, int64(1), mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var result model.SyncResult
	require.NoError(t, env.payrec.drainSyncQueue(context.Background(), 3, &result))
	assert.Equal(t, 3, result.Processed)
	env.ds.AssertNumberOfCalls(t, "DequeueSync", 3)
}
