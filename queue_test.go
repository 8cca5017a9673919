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
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/blnkfinance/payrec/internal/messaging"
	"github.com/blnkfinance/payrec/model"
	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessSyncTriggerRunsOrchestrator(t *testing.T) {
	env := newTestEnv(t, "")
	var sources atomic.Value
	env.payrec.orchestrator = NewOrchestrator(func(ctx context.Context, source string) (model.SyncResult, error) {
		sources.Store(source)
		return model.SyncResult{}, nil
	}, 0)

	payload, err := json.Marshal(syncTriggerPayload{Source: SourceWebhook})
	require.NoError(t, err)
	require.NoError(t, env.payrec.ProcessSyncTrigger(context.Background(), asynq.NewTask(TaskSyncTrigger, payload)))
	env.payrec.orchestrator.Wait()

	assert.Equal(t, SourceWebhook, sources.Load())
	assert.Equal(t, uint64(1), env.payrec.orchestrator.Status().LastRun.RunID)
}

func TestProcessSyncTriggerRejectsBadPayload(t *testing.T) {
	env := newTestEnv(t, "")
	err := env.payrec.ProcessSyncTrigger(context.Background(), asynq.NewTask(TaskSyncTrigger, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestProcessMessage(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, "https://messaging.test/send", httpmock.NewStringResponder(http.StatusAccepted, ""))

	env := newTestEnv(t, "")
	env.payrec.messenger = messaging.NewHTTPSender("https://messaging.test/send", "tok", "AR")

	task := func(to string) *asynq.Task {
		payload, _ := json.Marshal(messaging.Message{To: to, Template: messaging.TemplateReceiptConfirmed})
		return asynq.NewTask(TaskNotifyMessage, payload)
	}

	require.NoError(t, env.payrec.ProcessMessage(context.Background(), task("+16502530000")))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	err := env.payrec.ProcessMessage(context.Background(), task("12"))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProcessMessageWithoutProvider(t *testing.T) {
	env := newTestEnv(t, "")
	payload, _ := json.Marshal(messaging.Message{To: "+16502530000", Template: messaging.TemplateCashRecorded})
	assert.NoError(t, env.payrec.ProcessMessage(context.Background(), asynq.NewTask(TaskNotifyMessage, payload)))
}
