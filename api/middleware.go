package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
)

const (
	ctxUserID  = "user_id"
	ctxEmail   = "email"
	ctxIsAdmin = "is_admin"
)

// Claims carried by the bearer token. Tokens are issued elsewhere; this
// service only verifies them.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Admin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

func Logger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start),
			"client_ip": c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request processed")
		}
	}
}

// Auth verifies an HS256 bearer token and stores the caller identity in the
// gin context.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) < 8 || !strings.EqualFold(header[:7], "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "UNAUTHORIZED"})
			return
		}

		claims := &Claims{}
		_, err := jwt.ParseWithClaims(header[7:], claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "UNAUTHORIZED"})
			return
		}

		userID := claims.UserID
		if userID == "" {
			userID = claims.Subject
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no user", "code": "UNAUTHORIZED"})
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxIsAdmin, claims.Admin)
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ctxIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only", "code": "AUTHORIZATION"})
			return
		}
		c.Next()
	}
}

// RateLimit limits requests per caller, keyed by user id when the request is
// authenticated and by client IP otherwise.
func RateLimit(store limiter.Store, rate limiter.Rate) gin.HandlerFunc {
	return ginlimiter.NewMiddleware(limiter.New(store, rate), ginlimiter.WithKeyGetter(func(c *gin.Context) string {
		if id := c.GetString(ctxUserID); id != "" {
			return "user:" + id
		}
		return "ip:" + c.ClientIP()
	}))
}

// ParseRate reads rates such as "10-2m", "30-20s" or "5-1h".
func ParseRate(s string) (limiter.Rate, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return limiter.Rate{}, fmt.Errorf("invalid rate format: %s", s)
	}

	limit, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || limit <= 0 {
		return limiter.Rate{}, fmt.Errorf("invalid limit: %s", parts[0])
	}

	period := parts[1]
	if period == "" {
		return limiter.Rate{}, fmt.Errorf("invalid rate format: %s", s)
	}
	var unit time.Duration
	switch period[len(period)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	default:
		return limiter.Rate{}, fmt.Errorf("unsupported period: %s", period)
	}
	n, err := strconv.Atoi(period[:len(period)-1])
	if err != nil || n <= 0 {
		return limiter.Rate{}, fmt.Errorf("invalid period: %s", period)
	}

	return limiter.Rate{Period: time.Duration(n) * unit, Limit: limit}, nil
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
