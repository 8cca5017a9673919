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

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blnkfinance/payrec"
	"github.com/blnkfinance/payrec/config"
	pg_listener "github.com/blnkfinance/payrec/internal/pg-listener"
	redis_db "github.com/blnkfinance/payrec/internal/redis-db"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

func initializeQueues(conf *config.Configuration) map[string]int {
	return map[string]int{
		conf.Queue.SyncQueue:      3,
		conf.Queue.MessagingQueue: 1,
	}
}

func redisConnOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %v", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	opt, err := redisConnOpt(conf)
	if err != nil {
		return nil, err
	}

	return asynq.NewServer(opt, asynq.Config{
		Concurrency: 2,
		Queues:      initializeQueues(conf),
		Logger:      logrus.StandardLogger(),
	}), nil
}

func initializeTaskHandlers(p *payrec.Payrec, mux *asynq.ServeMux) {
	mux.HandleFunc(payrec.TaskSyncTrigger, p.ProcessSyncTrigger)
	mux.HandleFunc(payrec.TaskNotifyMessage, p.ProcessMessage)
}

func startMonitoring(conf *config.Configuration) {
	opt, err := redisConnOpt(conf)
	if err != nil {
		logrus.WithError(err).Warn("asynqmon disabled")
		return
	}
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: opt,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
}

// workerCommands defines the "workers" command. The workers consume sync
// triggers and outbound messages, run the periodic sync timer and return
// stuck sync items to the queue.
func workerCommands(p *payrecInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start payrec workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			conf := p.cnf

			phClient, shutdown, err := initializeObservability(ctx, conf, "PAYREC_WORKERS")
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()
			if phClient != nil {
				defer phClient.Close()
			}

			srv, err := initializeWorkerServer(conf)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(p.payrec, mux)

			startMonitoring(conf)

			scheduler := payrec.NewScheduler(p.payrec.Orchestrator(), time.Duration(conf.Sync.IntervalSec)*time.Second)
			scheduler.Start()
			defer scheduler.Stop()

			recovery := payrec.NewSyncRecoveryProcessor(p.payrec)
			recovery.Start(ctx)
			defer recovery.Stop()

			listener := pg_listener.NewDBListener(pg_listener.ListenerConfig{PgConnStr: conf.DataSource.Dns}, func(item pg_listener.EnqueuedItem) {
				result := p.payrec.TriggerSync(payrec.SourceQueue)
				logrus.WithFields(logrus.Fields{"sync_item_id": item.ID, "status": result.Status}).Debug("sync queue notification")
			})
			go func() {
				if err := listener.Start(ctx); err != nil {
					logrus.WithError(err).Warn("sync queue listener stopped, falling back to the timer")
				}
			}()

			if err := srv.Start(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
			<-ctx.Done()
			srv.Shutdown()
			p.payrec.Orchestrator().Wait()
		},
	}

	return cmd
}
