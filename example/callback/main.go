package main

import (
	"context"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	pulserelay "github.com/xueayi/HeartRate-to-VRC"
)

// Feeds a simulated heart rate through the relay and prints status events.
func main() {
	cfg := &pulserelay.Config{
		Source: pulserelay.SourceConfig{Kind: "external"},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := pulserelay.NewRelayRuntime(cfg,
		pulserelay.WithEventSink(pulserelay.NewCallbackSink("printer", func(batch []pulserelay.StatusEvent) error {
			for _, ev := range batch {
				if ev.Kind == pulserelay.EventTelemetry && ev.Sample != nil && ev.Triple != nil {
					log.Printf("sent %d bpm (float %.3f)", ev.Sample.RawValue, ev.Triple.FloatValue)
				}
			}
			return nil
		})),
	)
	if err != nil {
		log.Fatalf("build relay: %v", err)
	}

	go simulate(ctx, rt.External())

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("relay exited: %v", err)
	}
}

func simulate(ctx context.Context, src *pulserelay.ExternalSource) {
	select {
	case <-src.Opened():
	case <-ctx.Done():
		return
	}

	bpm := 70
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bpm += rand.Intn(7) - 3
			if err := src.Publish(bpm); err != nil {
				log.Printf("publish: %v", err)
			}
		}
	}
}
