package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	pulserelay "github.com/xueayi/HeartRate-to-VRC"
)

func main() {
	flow, err := pulserelay.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := pulserelay.NewChannelSink("connectivity", 32)
	defer closeBatches()

	go connectivityWorker(batches)

	if err := flow.Run(ctx, pulserelay.StreamOutSink(sink)); err != nil {
		log.Fatalf("relay exited: %v", err)
	}
}

func connectivityWorker(batches <-chan []pulserelay.StatusEvent) {
	for batch := range batches {
		for _, ev := range batch {
			switch {
			case ev.Kind == pulserelay.EventConnectivity:
				fmt.Printf("[%s] connected=%t\n", ev.At.Format(time.RFC3339), ev.Connected)
			case ev.Err != nil:
				fmt.Printf("[%s] %s: %v\n", ev.At.Format(time.RFC3339), ev.Kind, ev.Err)
			}
		}
	}
}
