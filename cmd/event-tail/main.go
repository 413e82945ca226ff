package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/muhammadchandra19/kwanza-exchange/internal/config"
	"github.com/muhammadchandra19/kwanza-exchange/internal/infrastructure/publisher"
)

// seenLimit bounds the dedup window; the relay redelivers recent batches only.
const seenLimit = 10000

func main() {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var (
		brokers = flag.String("brokers", strings.Join(cfg.Kafka.Brokers, ","), "Kafka broker addresses (comma-separated)")
		topic   = flag.String("topic", cfg.Kafka.Topic, "Kafka topic name")
		group   = flag.String("group", "", "Consumer group (empty reads every partition from -offset)")
		offset  = flag.String("offset", "last", "Start offset without a group: first or last")
		types   = flag.String("types", "", "Event types to print (comma-separated, empty = all)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	readerCfg := kafka.ReaderConfig{
		Brokers:  strings.Split(*brokers, ","),
		Topic:    *topic,
		GroupID:  *group,
		MaxWait:  500 * time.Millisecond,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	if *group == "" && *offset == "first" {
		readerCfg.StartOffset = kafka.FirstOffset
	} else {
		readerCfg.StartOffset = kafka.LastOffset
	}
	reader := kafka.NewReader(readerCfg)
	defer reader.Close()

	wanted := make(map[string]bool)
	for _, t := range strings.Split(*types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			wanted[t] = true
		}
	}

	log.Printf("Tailing engine events from broker: %s, topic: %s", *brokers, *topic)

	seen := make(map[string]struct{}, seenLimit)
	var order []string
	counts := make(map[string]int)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("Failed to read message: %v", err)
			continue
		}

		ev, err := publisher.Decode(msg)
		if err != nil {
			log.Printf("Skipping partition %d offset %d: %v", msg.Partition, msg.Offset, err)
			continue
		}
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}
		order = append(order, ev.ID)
		if len(order) > seenLimit {
			delete(seen, order[0])
			order = order[1:]
		}

		counts[string(ev.Type)]++
		if len(wanted) > 0 && !wanted[string(ev.Type)] {
			continue
		}
		log.Printf("%s | %-18s | %-8s | %s | %s",
			ev.CreatedAt.Format(time.RFC3339Nano), ev.Type, ev.Pair, ev.AggregateID, ev.Payload)
	}

	// Print summary
	for t, n := range counts {
		log.Printf("%s: %d", t, n)
	}
}
