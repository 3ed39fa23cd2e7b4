package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/evotodo/todo-api/internal/modules/serializer"
	"github.com/evotodo/todo-api/internal/pkg/utils/tokens"
)

const (
	// ContextUserID holds the verified user id as a string.
	ContextUserID = "user_id"
	ContextClaims = "claims"
)

// UserAuth authenticates requests using HS256 bearer tokens and scopes them
// to the :user_id path parameter. A valid token for another user is
// rejected with 403. It also sets the user_id attribute on the current span.
func UserAuth(v *tokens.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}

		claims, err := v.Verify(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Invalid or expired token"))
			return
		}

		if pathUser := c.Param("user_id"); pathUser != "" && pathUser != claims.UserID {
			c.AbortWithStatusJSON(http.StatusForbidden, serializer.ForbiddenErr("Access forbidden: user_id mismatch"))
			return
		}

		span := trace.SpanFromContext(c.Request.Context())
		if span.SpanContext().IsValid() {
			span.SetAttributes(attribute.String("user_id", claims.UserID))
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}
