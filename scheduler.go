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
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	SourceTimer = "timer"
	// SourceQueue marks runs started by a sync queue insert notification.
	SourceQueue = "queue"
)

// Scheduler triggers the orchestrator on a fixed interval.
type Scheduler struct {
	orchestrator *Orchestrator
	interval     time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

func NewScheduler(orchestrator *Orchestrator, interval time.Duration) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		interval:     interval,
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		logrus.Infof("Sync scheduler started with interval: %v", s.interval)

		for {
			select {
			case <-ticker.C:
				result := s.orchestrator.Trigger(SourceTimer)
				logrus.WithFields(logrus.Fields{"status": result.Status, "run_id": result.RunID}).Debug("scheduled sync triggered")
			case <-s.stopCh:
				logrus.Info("Sync scheduler stopping...")
				return
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	logrus.Info("Sync scheduler stopped")
}
