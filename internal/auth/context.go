package auth

import "github.com/gin-gonic/gin"

const (
	ctxUserID  = "userID"
	ctxEmail   = "userEmail"
	ctxIsAdmin = "userIsAdmin"
)

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	if v, ok := c.Get(ctxUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetUserEmail returns the authenticated user's email or empty string.
func GetUserEmail(c *gin.Context) string {
	if v, ok := c.Get(ctxEmail); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IsSystemAdmin reports whether the authenticated user carries the admin claim.
func IsSystemAdmin(c *gin.Context) bool {
	return c.GetBool(ctxIsAdmin)
}

func setClaims(c *gin.Context, claims *Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxEmail, claims.Email)
	c.Set(ctxIsAdmin, claims.Admin)
}
