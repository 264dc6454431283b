package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginmiddleware "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/auth"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/user"
)

// AdminChecker resolves whether a user currently holds system admin rights.
type AdminChecker interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// RequireSystemAdmin ensures the authenticated user is a system admin.
// It MUST be used after auth.AuthRequired middleware. The stored flag wins over the token claim
// so a revoked admin loses access before the token expires.
func RequireSystemAdmin(users AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.GetUserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		u, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		if !u.IsActive || !u.IsSystemAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: system admin access required"})
			return
		}

		c.Next()
	}
}

// NewRateLimit limits requests per caller. rate uses the limiter format, e.g. "30-M".
// Authenticated callers are keyed by user id, anonymous ones by client IP.
// A nil client keeps counters in process memory.
func NewRateLimit(rate string, client redis.UniversalClient, routeID string) (gin.HandlerFunc, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	prefix := "rate_limiter:" + routeID
	var store limiter.Store
	if client != nil {
		store, err = redisstore.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix})
	}

	return ginmiddleware.NewMiddleware(limiter.New(store, parsed), ginmiddleware.WithKeyGetter(func(c *gin.Context) string {
		if userID := auth.GetUserID(c); userID != "" {
			return "user:" + userID
		}
		return "ip:" + c.ClientIP()
	})), nil
}
