package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yavishsahrawat40/My-Notes/internal/auth"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

const authUserKey = "auth_user"

// Reasons reported in the "code" field of a 401.
const (
	codeMissingToken      = "missing_token"
	codeTokenExpired      = "token_expired"
	codeTokenMalformed    = "token_malformed"
	codeTokenBadSignature = "token_bad_signature"
)

// accessTokenParser - stateless access token verification
type accessTokenParser interface {
	ParseAccessToken(token string) (*model.AuthUser, error)
}

// AuthMiddleware accepts requests carrying a valid bearer access token. It
// never consults a store; revocation reaches access tokens only via expiry.
func AuthMiddleware(parser accessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeUnauthorized(c, codeMissingToken)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			writeUnauthorized(c, codeMissingToken)
			return
		}

		user, err := parser.ParseAccessToken(token)
		if err != nil {
			writeUnauthorized(c, tokenErrorCode(err))
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

func tokenErrorCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return codeTokenExpired
	case errors.Is(err, auth.ErrTokenBadSignature):
		return codeTokenBadSignature
	default:
		return codeTokenMalformed
	}
}

func writeUnauthorized(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized", Code: code})
}

func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
