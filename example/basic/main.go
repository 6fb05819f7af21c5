package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	pulserelay "github.com/xueayi/HeartRate-to-VRC"
)

func main() {
	flow, err := pulserelay.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil {
		log.Fatalf("relay exited: %v", err)
	}
}
