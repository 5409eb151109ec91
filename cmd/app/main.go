package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/airseats/config"
	"github.com/Domenick1991/airseats/internal/bootstrap"
	"github.com/Domenick1991/airseats/internal/cache"
	"github.com/Domenick1991/airseats/internal/kafka"
	"github.com/Domenick1991/airseats/internal/lock"
	"github.com/Domenick1991/airseats/internal/logger"
	"github.com/Domenick1991/airseats/internal/notify"
	"github.com/Domenick1991/airseats/internal/repository"
	"github.com/Domenick1991/airseats/internal/service/booking"
	"github.com/Domenick1991/airseats/internal/service/flights"
	"github.com/Domenick1991/airseats/internal/tickets"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

type stores struct {
	flights  repository.FlightRepository
	bookings repository.BookingRepository
	tx       repository.Transactor
}

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st stores
	switch cfg.Database.Driver {
	case "memory":
		mem := repository.NewMemoryStore()
		st = stores{flights: mem.Flights(), bookings: mem.Bookings(), tx: mem}
		logr.Warn("using in-memory store, data is lost on restart")
	default:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			logr.WithError(err).Fatal("connect postgres")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logr.WithError(err).Fatal("ping postgres")
		}
		st = stores{
			flights:  repository.NewFlightRepository(pool),
			bookings: repository.NewBookingRepository(pool),
			tx:       repository.NewTransactor(pool),
		}
	}

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking)
	defer redisCache.Close()

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Booking.LockBackend == "redis" {
		locker = redisCache
	}

	var rateStore limiter.Store = memory.NewStore()
	if err := redisCache.Client().Ping(ctx).Err(); err != nil {
		logr.WithError(err).Warn("redis unavailable, rate limits are per instance")
		if cfg.Booking.LockBackend == "redis" {
			logr.Fatal("redis lock backend configured but redis is unreachable")
		}
	} else {
		rateStore, err = redisstore.NewStoreWithOptions(redisCache.Client(), limiter.StoreOptions{Prefix: "rate_limiter:bookings", MaxRetry: 3})
		if err != nil {
			logr.WithError(err).Fatal("create rate limiter store")
		}
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, logr)
	defer producer.Close()
	if err := producer.CheckConnection(ctx); err != nil {
		logr.WithError(err).Warn("kafka unavailable, events and notifications will be dropped with a warning")
	}

	ticketGen, err := tickets.NewGenerator(cfg.Tickets)
	if err != nil {
		logr.WithError(err).Fatal("init tickets")
	}

	flightService := flights.NewFlightService(st.flights, redisCache, logr)
	bookingService := booking.NewBookingService(
		st.bookings,
		st.flights,
		st.tx,
		locker,
		logr,
		booking.WithTicketGenerator(ticketGen),
		booking.WithNotifier(notify.NewKafkaNotifier(producer, cfg.Kafka.NotificationsTopic, cfg.Kafka.PublishRetries)),
		booking.WithEvents(producer, cfg.Kafka.BookingEventsTopic),
		booking.WithFlightsCache(redisCache),
	)

	if err := bootstrap.Run(ctx, cfg, bootstrap.Deps{
		Flights:   flightService,
		Bookings:  bookingService,
		RateStore: rateStore,
		Log:       logr,
	}); err != nil {
		logr.WithError(err).Fatal("server error")
	}
}
