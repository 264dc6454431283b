package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/api"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/auth"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/booking"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/config"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/db"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/events"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/lock"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/payment"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/resource"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/user"
)

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager

	closers []func()
}

// Close releases the connections opened by NewContainer, newest first.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

type repositories struct {
	users     user.Repository
	resources resource.Repository
	bookings  booking.Repository
}

// NewContainer initializes all modules and returns the container.
func NewContainer(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Container, error) {
	c := &Container{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	response.SetLogger(log)

	// Storage
	repos, err := c.openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// Redis backs both the distributed lock and the shared rate limit store.
	var redisClient redis.UniversalClient
	if cfg.LockBackend == config.LockRedis {
		client, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = client.Close() })
		redisClient = client
	}

	var locker lock.Locker
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, cfg.LockTTL, cfg.LockWait, log)
	} else {
		locker = lock.NewLocalLocker(cfg.LockWait)
	}

	// Payment
	var gateway payment.Gateway
	var bookingOpts []booking.Option
	switch cfg.PaymentProvider {
	case config.PaymentRazorpay:
		gateway = payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)
	default:
		gateway = payment.NewOfflineGateway()
		bookingOpts = append(bookingOpts, booking.WithOfflineSettlement())
	}
	bookingOpts = append(bookingOpts, booking.WithLocation(cfg.Location))

	// Events
	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() {
			if err := amqpPublisher.Close(); err != nil {
				log.WithError(err).Warn("failed to close amqp publisher")
			}
		})
		publisher = events.NewLoggingPublisher(amqpPublisher, log)
	} else {
		log.Info("AMQP_URL not set, booking events are not published")
	}

	// Init Components
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)

	// User Module
	userService := user.NewService(repos.users, hasher)

	// Resource Module
	resourceService := resource.NewCachedService(resource.NewService(repos.resources), cfg.CatalogCacheTTL)

	// Booking Module
	bookingService := booking.NewService(repos.bookings, resourceService, locker, gateway, publisher, hasher, bookingOpts...)

	createLimit, err := api.NewRateLimit(cfg.BookingRateLimit, redisClient, "booking-create")
	if err != nil {
		return nil, err
	}

	// Router
	c.Router = api.NewRouter(api.Config{
		IsProduction:       cfg.IsProduction,
		ProdOrigins:        cfg.ProdOrigins,
		Logger:             log,
		UserService:        userService,
		ResourceService:    resourceService,
		BookingService:     bookingService,
		PaymentGateway:     gateway,
		JWTManager:         jwtManager,
		BookingCreateLimit: createLimit,
	})
	c.JWTManager = jwtManager

	log.WithFields(logrus.Fields{
		"store":   cfg.Store,
		"lock":    cfg.LockBackend,
		"payment": cfg.PaymentProvider,
	}).Info("application container initialized")

	ok = true
	return c, nil
}

func (c *Container) openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (repositories, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return repositories{
			users:     user.NewMemoryRepository(),
			resources: resource.NewMemoryRepository(),
			bookings:  booking.NewMemoryRepository(),
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return repositories{}, fmt.Errorf("failed to connect to db: %w", err)
	}
	c.closers = append(c.closers, pool.Close)

	return pgxRepositories(pool), nil
}

func pgxRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		users:     user.NewPgxRepository(pool),
		resources: resource.NewPgxRepository(pool),
		bookings:  booking.NewPgxRepository(pool),
	}
}
