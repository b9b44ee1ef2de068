package main

import (
	"campusbook/internal/directory"
	"campusbook/internal/slots/handler"
	"campusbook/internal/slots/repository"
	"campusbook/internal/slots/service"
	"campusbook/internal/slots/validator"
	"campusbook/pkg/app"
	"campusbook/pkg/config"
	"campusbook/pkg/events"
)

const ServiceName = "slots"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()

	cfg.Log.Info("Starting Slots service")
	cfg.SetMongo()
	defer cfg.Client.GracefulShutdown()

	publisher := initPublisher(cfg)
	if publisher != nil {
		defer publisher.Close()
	}

	slotService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewSlotHandler(slotService, cfg.Log))
	serverApp.Run()
}

func initPublisher(cfg *config.Config) *events.KafkaPublisher {
	eventsCfg := events.LoadConfig()
	if !eventsCfg.Enabled() {
		cfg.Log.Info("Event publishing disabled, no Kafka brokers configured")
		return nil
	}

	publisher, err := events.NewKafkaPublisher(eventsCfg, ServiceName, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event publisher", "error", err)
	}

	cfg.Log.Info("Event publisher initialized",
		"brokers", eventsCfg.Brokers,
		"topic", eventsCfg.Topic,
	)
	return publisher
}

func initServices(cfg *config.Config, publisher *events.KafkaPublisher) service.SlotService {
	slotValidator := validator.NewSlotValidator()
	slotRepo := repository.NewMongoSlotRepository(cfg)
	userRepo := directory.NewMongoUserRepository(cfg)

	var eventSink events.Publisher
	if publisher != nil {
		eventSink = publisher
	}

	slotService := service.NewSlotService(
		slotRepo,
		userRepo,
		slotValidator,
		eventSink,
		cfg,
	)

	cfg.Log.Info("Slot service initialized", "database", cfg.MongoDatabaseName)
	return slotService
}
