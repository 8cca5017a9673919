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
	"errors"
	"testing"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/signature"
	"github.com/blnkfinance/payrec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func signed(body string) ([]byte, string) {
	return []byte(body), signature.Sign("s3cr3t", []byte(body))
}

func TestWebhookRejectsBadSignatureBeforeAnyWrite(t *testing.T) {
	env := newTestEnv(t, "")
	body, valid := signed(`{"store_id":123,"event":"order/paid","id":456}`)

	tests := []struct {
		name string
		sig  string
	}{
		{name: "missing", sig: ""},
		{name: "short", sig: valid[:10]},
		{name: "tampered", sig: signature.Sign("other", body)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, err := env.payrec.HandlePlatformWebhook(context.Background(), body, tt.sig)
			assert.Nil(t, ack)
			assert.True(t, apierror.Is(err, apierror.ErrInvalidSignature))
		})
	}

	env.ds.AssertNotCalled(t, "EnqueueSync", mock.Anything, mock.Anything)
	assert.Empty(t, env.queue.triggers)
}

func TestWebhookRecordsEventAndTriggersSync(t *testing.T) {
	env := newTestEnv(t, "")
	body, sig := signed(`{"store_id":123,"event":"order/paid","id":456}`)

	env.ds.On("EnqueueSync", mock.Anything, mock.MatchedBy(func(item *model.SyncQueueItem) bool {
		return item.Type == model.SyncOrder && item.ResourceID == "456"
	})).Return(&model.SyncQueueItem{ID: 11}, true, nil)

	ack, err := env.payrec.HandlePlatformWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.False(t, ack.Duplicate)
	assert.Equal(t, int64(11), ack.SyncItemID)
	assert.Equal(t, []string{SourceWebhook}, env.queue.triggers)
	env.ds.AssertExpectations(t)
}

func TestWebhookCancelledEventEnqueuesCancel(t *testing.T) {
	env := newTestEnv(t, "")
	body, sig := signed(`{"store_id":"123","event":"order/cancelled","id":"789"}`)

	env.ds.On("EnqueueSync", mock.Anything, mock.MatchedBy(func(item *model.SyncQueueItem) bool {
		return item.Type == model.SyncOrderCancel && item.ResourceID == "789"
	})).Return(&model.SyncQueueItem{ID: 12}, false, nil)

	ack, err := env.payrec.HandlePlatformWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.True(t, ack.Duplicate)
}

func TestWebhookAcksIgnoredEvents(t *testing.T) {
	env := newTestEnv(t, "")

	for _, raw := range []string{
		`{"store_id":123,"event":"product/created","id":1}`,
		`{"store_id":999,"event":"order/paid","id":1}`,
	} {
		body, sig := signed(raw)
		ack, err := env.payrec.HandlePlatformWebhook(context.Background(), body, sig)
		require.NoError(t, err)
		assert.False(t, ack.Accepted)
		assert.NotEmpty(t, ack.Reason)
	}
	env.ds.AssertNotCalled(t, "EnqueueSync", mock.Anything, mock.Anything)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t, "")

	for _, raw := range []string{`not json`, `{"event":"order/paid"}`} {
		body, sig := signed(raw)
		_, err := env.payrec.HandlePlatformWebhook(context.Background(), body, sig)
		assert.True(t, apierror.Is(err, apierror.ErrInvalidInput), raw)
	}
}

func TestWebhookTriggerFailureStillAcks(t *testing.T) {
	env := newTestEnv(t, "")
	env.queue.triggerErr = errors.New("redis down")
	body, sig := signed(`{"store_id":123,"event":"order/updated","id":456}`)
	env.ds.On("EnqueueSync", mock.Anything, mock.Anything).Return(&model.SyncQueueItem{ID: 13}, true, nil)

	ack, err := env.payrec.HandlePlatformWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
}

func TestWebhookRecordFailureIsReturned(t *testing.T) {
	env := newTestEnv(t, "")
	body, sig := signed(`{"store_id":123,"event":"order/updated","id":456}`)
	env.ds.On("EnqueueSync", mock.Anything, mock.Anything).
		Return(nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to enqueue sync item", nil))

	ack, err := env.payrec.HandlePlatformWebhook(context.Background(), body, sig)
	assert.Nil(t, ack)
	assert.Error(t, err)
	assert.Empty(t, env.queue.triggers)
}
