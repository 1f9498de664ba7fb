package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"festreg/internal/config"
	"festreg/internal/notify"
	"festreg/internal/queue"
	"festreg/internal/store"
)

// Worker consumes confirmation messages and sends registration email.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "festreg:notifications")
	}

	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	if mailer == nil {
		log.Println("SMTP not configured (SMTP_HOST unset), confirmations will be logged only")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeConfirmation {
			continue
		}

		note, err := notify.Decode(msg.Body)
		if err != nil {
			log.Printf("bad confirmation message: %v", err)
			continue
		}

		if mailer == nil {
			log.Printf("confirmation %s for %s (%d event(s)) skipped, no mailer", note.ID, note.Email, len(note.Events))
			continue
		}

		if err := mailer.SendConfirmation(note); err != nil {
			log.Printf("confirmation %s for %s failed: %v", note.ID, note.Email, err)
			continue
		}
		log.Printf("confirmation %s sent to %s", note.ID, note.Email)
	}

	log.Println("worker stopped")
}
