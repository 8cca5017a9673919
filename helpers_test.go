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
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/blnkfinance/payrec/config"
	"github.com/blnkfinance/payrec/database/mocks"
	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/messaging"
	"github.com/blnkfinance/payrec/internal/platform"
	"github.com/blnkfinance/payrec/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)

type fakeQueue struct {
	mu         sync.Mutex
	triggers   []string
	messages   []messaging.Message
	triggerErr error
}

func (q *fakeQueue) EnqueueSyncTrigger(_ context.Context, source string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.triggerErr != nil {
		return q.triggerErr
	}
	q.triggers = append(q.triggers, source)
	return nil
}

func (q *fakeQueue) EnqueueMessage(_ context.Context, msg messaging.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

type fakePlatform struct {
	orders   map[string]platform.RemoteOrder
	searched []platform.RemoteOrder
	err      error
	fetches  int
}

func (f *fakePlatform) FetchOrder(_ context.Context, remoteID string) (*platform.RemoteOrder, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.orders[remoteID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "resource not found on platform", nil)
	}
	return &o, nil
}

func (f *fakePlatform) SearchOrders(_ context.Context, _ platform.SearchParams) ([]platform.RemoteOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.searched, nil
}

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) ExtractText(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type testEnv struct {
	payrec   *Payrec
	ds       *mocks.MockDataSource
	queue    *fakeQueue
	platform *fakePlatform
	redis    *miniredis.Miniredis
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		ProjectName: "payrec-test",
		Platform: config.PlatformConfig{
			StoreID:         "123",
			WebhookSecret:   "s3cr3t",
			PollWindowHours: 48,
		},
		Sync: config.SyncConfig{
			IntervalSec:   300,
			BatchSize:     10,
			MaxAttempts:   5,
			BaseDelaySec:  60,
			RetentionDays: 7,
			StuckAfterMin: 15,
			ResyncLimit:   100,
		},
		Payment:   config.PaymentConfig{Tolerance: 1000},
		Receipts:  config.ReceiptConfig{DebounceWindowSec: 3, MinAmount: 100, EntityCacheTTLSec: 60},
		Messaging: config.MessagingConfig{Url: "https://messaging.test/send", DefaultRegion: "AR"},
	}
}

func newTestEnv(t *testing.T, ocrText string) *testEnv {
	t.Helper()
	config.MockConfig(testConfig())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		ds:       new(mocks.MockDataSource),
		queue:    &fakeQueue{},
		platform: &fakePlatform{orders: map[string]platform.RemoteOrder{}},
		redis:    mr,
	}
	p, err := New(env.ds,
		WithRedis(client),
		WithQueue(env.queue),
		WithPlatform(env.platform),
		WithOCR(fakeOCR{text: ocrText}),
		WithStorage(storage.NoopUploader{}),
		WithMessenger(messaging.NewHTTPSender("", "", "AR")),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	env.payrec = p
	return env
}
