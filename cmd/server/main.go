package main

import (
	bookinghandler "eventbook/internal/bookings/handler"
	bookingrepository "eventbook/internal/bookings/repository"
	bookingservice "eventbook/internal/bookings/service"
	bookingvalidator "eventbook/internal/bookings/validator"
	eventhandler "eventbook/internal/events/handler"
	eventrepository "eventbook/internal/events/repository"
	eventservice "eventbook/internal/events/service"
	eventvalidator "eventbook/internal/events/validator"
	teamhandler "eventbook/internal/teams/handler"
	teamrepository "eventbook/internal/teams/repository"
	teamservice "eventbook/internal/teams/service"
	teamvalidator "eventbook/internal/teams/validator"
	"eventbook/pkg/app"
	"eventbook/pkg/config"
	"eventbook/pkg/kafka"
	kafka_config "eventbook/pkg/kafka/config"
	"eventbook/pkg/notify"

	"github.com/joho/godotenv"
)

const ServiceName = "eventbook-server"

func main() {
	_ = godotenv.Load()

	cfg := config.Load(ServiceName)

	cfg.Log.Info("Starting Eventbook server")
	cfg.SetMongo()

	producer, err := kafka.NewProducer(
		kafka_config.Load(),
		cfg.KafkaNotificationsTopic,
		cfg.KafkaDLQTopic,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	notifier := notify.NewNotifier(producer, cfg.Log, ServiceName)

	eventHandler, bookingHandler, teamHandler, sweeper := initServices(cfg, notifier)

	if err := sweeper.Start(); err != nil {
		cfg.Log.Fatal("Failed to start booking sweeper", "error", err)
	}

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, eventHandler, bookingHandler, teamHandler)
	serverApp.OnShutdown(sweeper.Stop)
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initServices(cfg *config.Config, notifier *notify.Notifier) (
	*eventhandler.EventHandler,
	*bookinghandler.BookingHandler,
	*teamhandler.TeamHandler,
	*bookingservice.Sweeper,
) {
	eventRepo := eventrepository.NewMongoEventRepository(cfg)
	slotRepo := eventrepository.NewMongoSlotRepository(cfg)
	bookingRepo := bookingrepository.NewMongoBookingRepository(cfg)
	teamRepo := teamrepository.NewMongoTeamRepository(cfg)
	memberRepo := teamrepository.NewMongoTeamMemberRepository(cfg)

	eventService := eventservice.NewEventService(
		eventRepo,
		slotRepo,
		bookingRepo,
		notifier,
		eventvalidator.NewEventValidator(cfg.Log),
		cfg,
	)
	bookingService := bookingservice.NewBookingService(
		bookingRepo,
		eventRepo,
		slotRepo,
		notifier,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)
	teamService := teamservice.NewTeamService(
		teamRepo,
		memberRepo,
		notifier,
		teamvalidator.NewTeamValidator(cfg.Log),
		cfg,
	)

	sweeper := bookingservice.NewSweeper(bookingRepo, slotRepo, cfg)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return eventhandler.NewEventHandler(eventService, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
		teamhandler.NewTeamHandler(teamService, cfg.Log),
		sweeper
}
