package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"campusbook/pkg/events"
	"campusbook/pkg/logger"
)

const ServiceName = "notifier"

func main() {
	log := logger.New(logger.Config{
		Level:   logger.INFO,
		Format:  logger.JSON,
		Service: ServiceName,
	})

	eventsCfg := events.LoadConfig()
	if !eventsCfg.Enabled() {
		log.Fatal("KAFKA_BROKERS must be set for the notifier")
	}

	consumer, err := events.NewConsumer(eventsCfg, notify(log), log)
	if err != nil {
		log.Fatal("Failed to initialize consumer", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info("Shutdown signal received", "signal", sig)
		cancel()
		if err := consumer.Close(); err != nil {
			log.Error("Failed to close consumer", "error", err)
		}
	}()

	log.Info("Notifier started",
		"brokers", eventsCfg.Brokers,
		"topic", eventsCfg.Topic,
		"group", eventsCfg.ConsumerGroup,
	)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Consumer stopped unexpectedly", "error", err)
	}

	log.Info("Notifier stopped gracefully")
}

// notify records the notification intent for each event. Delivery
// channels (email, push) hang off this handler as they come online.
func notify(log *logger.Logger) events.EventHandler {
	return func(ctx context.Context, event events.SlotEvent) error {
		switch event.Type {
		case events.TypeSlotCreated:
			log.Info("Notify followers of new slot",
				"slot_id", event.SlotID,
				"owner_id", event.OwnerID,
				"start_time", event.StartTime,
			)
		case events.TypeSlotDeleted:
			log.Info("Notify bookers of cancelled slot",
				"slot_id", event.SlotID,
				"owner_id", event.OwnerID,
			)
		case events.TypeBookingAdded:
			log.Info("Notify owner of new booking",
				"slot_id", event.SlotID,
				"booker_id", event.BookerID,
				"booked_count", event.BookedCount,
			)
		case events.TypeBookingRemoved:
			log.Info("Notify owner of cancelled booking",
				"slot_id", event.SlotID,
				"booker_id", event.BookerID,
			)
		default:
			log.Warn("Unknown event type", "event_type", event.Type)
		}
		return nil
	}
}
