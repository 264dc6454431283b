package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/auth"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/hospitality-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/payment"
	paymentHttp "github.com/nekogravitycat/hospitality-booking-backend/internal/payment/http"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/logger"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/resource"
	resourceHttp "github.com/nekogravitycat/hospitality-booking-backend/internal/resource/http"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/user"
	userHttp "github.com/nekogravitycat/hospitality-booking-backend/internal/user/http"
)

// Config holds the services and settings the router is assembled from.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	Logger       logrus.FieldLogger

	UserService     user.Service
	ResourceService resource.Service
	BookingService  booking.Service
	PaymentGateway  payment.Gateway
	JWTManager      *auth.JWTManager

	// BookingCreateLimit guards POST /v1/bookings; nil disables limiting.
	BookingCreateLimit gin.HandlerFunc
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - Logger: Logs request information through logrus.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(logger.GinLogger(cfg.Logger), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction {
		corsConfig.AllowOrigins = splitOrigins(cfg.ProdOrigins)
	} else {
		corsConfig.AllowOrigins = []string{
			"http://localhost:3000",
			"http://localhost:8081", // Swagger
		}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", bookingHttp.GuestTokenHeader}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// optionalAuth: Accepts anonymous guests but still validates a token when one is sent.
	optionalAuth := auth.OptionalAuth(cfg.JWTManager)
	// sysAdminMiddleware: Further checks if the authenticated user has System Admin privileges.
	sysAdminMiddleware := RequireSystemAdmin(cfg.UserService)

	createLimit := cfg.BookingCreateLimit
	if createLimit == nil {
		createLimit = func(c *gin.Context) { c.Next() }
	}

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	userHandler := userHttp.NewHandler(cfg.UserService, cfg.JWTManager)
	resourceHandler := resourceHttp.NewHandler(cfg.ResourceService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)
	paymentHandler := paymentHttp.NewHandler(cfg.PaymentGateway, cfg.BookingService, cfg.Logger)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		userHttp.RegisterRoutes(v1, userHandler, authMiddleware, sysAdminMiddleware)
		resourceHttp.RegisterRoutes(v1, resourceHandler, authMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, bookingHttp.Middlewares{
			AuthRequired: authMiddleware,
			OptionalAuth: optionalAuth,
			CreateLimit:  createLimit,
		})
		paymentHttp.RegisterRoutes(v1, paymentHandler)
	}

	return r
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
