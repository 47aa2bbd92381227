package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/example/deskbook/internal/application"
	"github.com/example/deskbook/internal/logging"
)

// Claims is the bearer token payload. Subject is the user id.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("deskbook: invalid bearer token")

// IssueToken signs an HS256 token for principal valid for ttl from now.
func IssueToken(secret []byte, principal application.Principal, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Admin: principal.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies an HS256 token and returns the principal it names.
func ParseToken(secret []byte, token string) (application.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second))
	if err != nil {
		return application.Principal{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return application.Principal{}, errInvalidToken
	}
	return application.Principal{UserID: claims.Subject, IsAdmin: claims.Admin}, nil
}

// RequireBearer rejects requests without a valid bearer token and stores the
// resulting principal in the request context.
func RequireBearer(secret []byte, logger *slog.Logger) gin.HandlerFunc {
	responder := newResponder(logger)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			responder.writeJSON(c, http.StatusUnauthorized, errorResponse{
				ErrorCode: "AUTH_REQUIRED",
				Message:   "認証トークンを指定してください。",
			})
			c.Abort()
			return
		}

		principal, err := ParseToken(secret, token)
		if err != nil {
			responder.loggerFor(ctx).WarnContext(ctx, "bearer token rejected", "error", err, "error_kind", "unauthenticated")
			responder.writeJSON(c, http.StatusUnauthorized, errorResponse{
				ErrorCode: "AUTH_REQUIRED",
				Message:   "認証トークンが無効です。",
			})
			c.Abort()
			return
		}

		ctx = ContextWithPrincipal(ctx, principal)
		ctx = logging.WithAttrs(ctx, logger, "principal_id", principal.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger installs a per-request logger and logs request boundaries.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	base = defaultLogger(base)
	var counter atomic.Uint64

	return func(c *gin.Context) {
		id := counter.Add(1)
		ctx := logging.WithAttrs(c.Request.Context(), base,
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.Request = c.Request.WithContext(ctx)
		logger := logging.FromContext(ctx)

		start := time.Now()
		logger.InfoContext(ctx, "request started")
		c.Next()
		logger.InfoContext(ctx, "request completed", "status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func extractBearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
