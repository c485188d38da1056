package main

import (
	"context"

	availabilityhandler "agendly/internal/availability/handler"
	availabilityrepo "agendly/internal/availability/repository"
	availabilityservice "agendly/internal/availability/service"
	availabilityvalidator "agendly/internal/availability/validator"
	conflictservice "agendly/internal/conflicts/service"
	healthhandler "agendly/internal/health/handler"
	lockhandler "agendly/internal/locks/handler"
	lockrepo "agendly/internal/locks/repository"
	lockservice "agendly/internal/locks/service"
	lockvalidator "agendly/internal/locks/validator"
	"agendly/internal/reservations/events"
	reservationhandler "agendly/internal/reservations/handler"
	reservationrepo "agendly/internal/reservations/repository"
	reservationservice "agendly/internal/reservations/service"
	reservationvalidator "agendly/internal/reservations/validator"
	"agendly/pkg/app"
	"agendly/pkg/clock"
	"agendly/pkg/config"
	"agendly/pkg/kafka"
	kafka_config "agendly/pkg/kafka/config"
	kafka_middleware "agendly/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStores()

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication(cfg)
	health := healthhandler.NewHealthHandler(cfg.Log, healthhandler.ClientChecks(cfg.Client)...)

	clk := clock.Real{}
	lockManager := lockservice.NewSlotLockManager(newLockRepository(cfg), clk, cfg)
	availability := availabilityservice.NewStaffAvailabilityValidator(
		newAvailabilityRepository(cfg),
		availabilityvalidator.NewWindowValidator(cfg.Log),
		clk,
		cfg,
	)

	reservations := newReservationRepository(cfg)
	effects, producer := initSideEffects(cfg, health)
	reservationService := reservationservice.NewReservationService(
		reservations,
		lockManager,
		conflictservice.NewConflictDetector(reservations, cfg.Log),
		availability,
		reservationvalidator.NewReservationValidator(cfg.Log),
		effects,
		clk,
		cfg,
	)

	serverApp.OnShutdown("side_effects", func(ctx context.Context) error {
		reservationService.Wait()
		return nil
	})
	if producer != nil {
		serverApp.OnShutdown("kafka_producer", func(ctx context.Context) error {
			return producer.Close()
		})
	}

	serverApp.SetApp(health,
		reservationhandler.NewReservationHandler(reservationService, cfg.PublicLockRetryDelay, cfg.Log),
		lockhandler.NewSlotLockHandler(lockManager, lockvalidator.NewSlotLockValidator(cfg.Log), cfg.Log),
		availabilityhandler.NewStaffAvailabilityHandler(availability, cfg.Log),
	)
	cfg.Log.Info("Bookings service initialized",
		"reservation_store", cfg.ReservationStore,
		"lock_store", cfg.LockStore,
		"kafka_enabled", producer != nil,
	)
	serverApp.Run()
}

func newReservationRepository(cfg *config.Config) reservationrepo.ReservationRepository {
	if cfg.ReservationStore == config.StorePostgres {
		return reservationrepo.NewPgReservationRepository(cfg.Client.Postgres)
	}
	return reservationrepo.NewMongoReservationRepository(cfg)
}

func newAvailabilityRepository(cfg *config.Config) availabilityrepo.StaffAvailabilityRepository {
	if cfg.ReservationStore == config.StorePostgres {
		return availabilityrepo.NewPgStaffAvailabilityRepository(cfg.Client.Postgres)
	}
	return availabilityrepo.NewMongoStaffAvailabilityRepository(cfg)
}

func newLockRepository(cfg *config.Config) lockrepo.SlotLockRepository {
	if cfg.LockStore == config.StoreRedis {
		return lockrepo.NewRedisSlotLockRepository(cfg.Client.Redis)
	}
	return lockrepo.NewMongoSlotLockRepository(cfg)
}

// initSideEffects wires the Mongo backed side-effect stores and, when
// enabled, the Kafka event publisher. The producer is returned so it can be
// closed on shutdown.
func initSideEffects(cfg *config.Config, health *healthhandler.HealthHandler) (reservationservice.SideEffects, *kafka.Producer) {
	effects := reservationservice.SideEffects{
		Counters:  reservationrepo.NewMongoUsageCounter(cfg),
		Audit:     reservationrepo.NewMongoAuditLog(cfg),
		Reminders: reservationrepo.NewMongoReminderStore(cfg),
		LineItems: reservationrepo.NewMongoLineItemStore(cfg),
	}
	if !cfg.KafkaEnabled {
		return effects, nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaReservationTopic, cfg.KafkaReservationDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		metrics := kafka_middleware.NewMetrics()
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(metrics.ProducerMiddleware())
		health.ExposeMetrics("kafka_producer", func() any { return metrics.Snapshot() })
	}

	effects.Events = events.NewKafkaEventPublisher(producer, ServiceName)
	return effects, producer
}
