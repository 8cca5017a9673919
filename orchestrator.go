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
	"fmt"
	"sync"
	"time"

	"github.com/blnkfinance/payrec/model"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
)

type TriggerStatus string

const (
	TriggerStarted TriggerStatus = "started"
	TriggerQueued  TriggerStatus = "queued"
)

// TriggerResult tells the caller whether its trigger started a run or was
// folded into the rerun of the one in flight.
type TriggerResult struct {
	Status TriggerStatus `json:"status"`
	RunID  uint64        `json:"run_id"`
}

// SyncJob is the body of one orchestrator run.
type SyncJob func(ctx context.Context, source string) (model.SyncResult, error)

// OrchestratorStatus is a snapshot of the orchestrator for the status API.
type OrchestratorStatus struct {
	Running      bool           `json:"running"`
	RunID        uint64         `json:"run_id"`
	Queued       bool           `json:"queued"`
	QueuedSource string         `json:"queued_source,omitempty"`
	Current      *model.SyncRun `json:"current,omitempty"`
	LastRun      *model.SyncRun `json:"last_run,omitempty"`
}

// syncState is the process wide single-flight state. Every method takes the
// mutex, so the running check and the rerun flag always move together.
type syncState struct {
	mu           sync.Mutex
	running      bool
	runID        uint64
	queued       bool
	queuedSource string
	current      *model.SyncRun
	last         *model.SyncRun
}

// trigger either starts a run or records a rerun request.
func (s *syncState) trigger(source string, now time.Time) (model.SyncRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.tryStart(source, now); ok {
		return run, true
	}
	s.requestRerun(source)
	return model.SyncRun{RunID: s.runID, Source: s.current.Source}, false
}

func (s *syncState) tryStart(source string, now time.Time) (model.SyncRun, bool) {
	if s.running {
		return model.SyncRun{}, false
	}
	s.running = true
	s.runID++
	s.current = &model.SyncRun{RunID: s.runID, Source: source, StartedAt: now}
	return *s.current, true
}

func (s *syncState) requestRerun(source string) {
	s.queued = true
	s.queuedSource = source
}

// finish closes the current run. When a rerun was requested meanwhile it is
// started right away and returned, consuming the request.
func (s *syncState) finish(result model.SyncResult, runErr error, now time.Time) (model.SyncRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		done := *s.current
		done.FinishedAt = ptr.Time(now)
		done.Result = result
		if runErr != nil {
			done.Error = runErr.Error()
		}
		s.last = &done
	}
	s.running = false
	s.current = nil

	if !s.queued {
		return model.SyncRun{}, false
	}
	source := s.queuedSource
	s.queued = false
	s.queuedSource = ""
	return s.tryStart(source, now)
}

func (s *syncState) snapshot() OrchestratorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := OrchestratorStatus{
		Running:      s.running,
		RunID:        s.runID,
		Queued:       s.queued,
		QueuedSource: s.queuedSource,
	}
	if s.current != nil {
		current := *s.current
		status.Current = &current
	}
	if s.last != nil {
		last := *s.last
		status.LastRun = &last
	}
	return status
}

// Orchestrator runs a SyncJob single-flight. Triggers that arrive while a run
// is in progress collapse into exactly one follow-up run.
type Orchestrator struct {
	state   syncState
	job     SyncJob
	timeout time.Duration
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewOrchestrator(job SyncJob, timeout time.Duration) *Orchestrator {
	return &Orchestrator{job: job, timeout: timeout, now: time.Now}
}

// Trigger starts a run in the background, or queues a rerun if one is
// already in progress.
func (o *Orchestrator) Trigger(source string) TriggerResult {
	run, started := o.state.trigger(source, o.now())
	if !started {
		logrus.WithFields(logrus.Fields{"source": source, "run_id": run.RunID}).Info("sync run in progress, rerun queued")
		return TriggerResult{Status: TriggerQueued, RunID: run.RunID}
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.loop(run)
	}()
	return TriggerResult{Status: TriggerStarted, RunID: run.RunID}
}

// Wait blocks until no run is in progress.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) Status() OrchestratorStatus {
	return o.state.snapshot()
}

func (o *Orchestrator) loop(run model.SyncRun) {
	for {
		logger := logrus.WithFields(logrus.Fields{"run_id": run.RunID, "source": run.Source})
		logger.Info("sync run started")

		result, err := o.execute(run)
		if err != nil {
			logger.WithError(err).Error("sync run failed")
		} else {
			logger.WithFields(logrus.Fields{
				"polled":    result.Polled,
				"processed": result.Processed,
				"failed":    result.Failed,
			}).Info("sync run finished")
		}

		next, ok := o.state.finish(result, err, o.now())
		if !ok {
			return
		}
		run = next
	}
}

func (o *Orchestrator) execute(run model.SyncRun) (result model.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync run %d panicked: %v", run.RunID, r)
		}
	}()

	ctx := context.Background()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return o.job(ctx, run.Source)
}
