package main

import (
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bookkeeping/internal/platform/cache"
	"github.com/odyssey-erp/bookkeeping/jobs"
)

func main() {
	addr := getenv("REDIS_ADDR", "localhost:6379")
	client := asynq.NewClient(cache.QueueOptions(addr))
	defer client.Close()

	task, err := jobs.NewReconcileTask(time.Now().UTC())
	if err != nil {
		log.Fatalf("build task: %v", err)
	}
	info, err := client.Enqueue(task)
	if err != nil {
		log.Fatalf("enqueue reconcile: %v", err)
	}
	log.Printf("enqueued %s on queue %s", info.ID, info.Queue)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
