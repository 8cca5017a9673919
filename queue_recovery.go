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
	"time"

	"github.com/sirupsen/logrus"
)

// SyncRecoveryProcessor periodically returns sync items stuck in processing,
// left behind by a crashed worker, to the queue.
type SyncRecoveryProcessor struct {
	payrec         *Payrec
	pollInterval   time.Duration
	stuckThreshold time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
	running        bool
	mu             sync.Mutex
}

func NewSyncRecoveryProcessor(p *Payrec) *SyncRecoveryProcessor {
	return &SyncRecoveryProcessor{
		payrec:         p,
		pollInterval:   time.Minute,
		stuckThreshold: time.Duration(p.config.Sync.StuckAfterMin) * time.Minute,
		stopCh:         make(chan struct{}),
	}
}

func (r *SyncRecoveryProcessor) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx)
	}()

	logrus.Info("Sync recovery processor started")
}

func (r *SyncRecoveryProcessor) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	logrus.Info("Sync recovery processor stopped")
}

func (r *SyncRecoveryProcessor) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *SyncRecoveryProcessor) run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Sync recovery processor context cancelled")
			return
		case <-r.stopCh:
			logrus.Info("Sync recovery processor stop signal received")
			return
		case <-ticker.C:
			r.recover(ctx)
		}
	}
}

func (r *SyncRecoveryProcessor) recover(ctx context.Context) int64 {
	recovered, err := r.payrec.RecoverStuckSync(ctx, r.stuckThreshold)
	if err != nil {
		logrus.Errorf("failed to recover stuck sync items: %v", err)
		return 0
	}
	return recovered
}
