package taskqueue

import (
	"log"

	"github.com/hibiken/asynq"
)

var (
	asynqClient *asynq.Client
	asynqMux    = asynq.NewServeMux()
	asynqSrv    *asynq.Server
)

// initWorkers builds the client, handler mux and server. Split from
// StartWorkers so the client exists before anything can enqueue.
func initWorkers(redisAddr string) {
	asynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	asynqMux.HandleFunc(TypeEvaluateTrigger, evaluateTriggerTask)
	asynqMux.HandleFunc(TypeEscalationSweep, escalationSweepTask)
	asynqSrv = asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: 10})
}

// StartWorkers initializes the Asynq client synchronously and runs the
// worker server in the background. Enqueues are valid as soon as this
// returns.
func StartWorkers(redisAddr string) {
	log.Printf("TASKQUEUE: Starting Asynq workers with Redis at %s", redisAddr)
	initWorkers(redisAddr)
	go func() {
		log.Printf("TASKQUEUE: Workers started, waiting for tasks...")
		if err := asynqSrv.Run(asynqMux); err != nil {
			log.Fatalf("TASKQUEUE: Failed to start workers: %v", err)
		}
	}()
}

// StopWorkers stops workers
func StopWorkers() {
	log.Printf("TASKQUEUE: Stopping workers...")
	asynqSrv.Stop()
	asynqClient.Close()
	log.Printf("TASKQUEUE: Workers stopped")
}
