package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestId"
	userIDKey       = "userId"
)

// requestID tags every request with an id, reusing one sent by the client.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// authenticate resolves the caller from a bearer token when one is sent.
// Without a token the request passes through unless tokens are required.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if s.requireToken {
				s.respondError(c, http.StatusUnauthorized, errors.New("authorization header is missing"))
				return
			}
			c.Next()
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			s.respondError(c, http.StatusUnauthorized, errors.New("invalid authorization format"))
			return
		}
		if s.tokens == nil {
			s.respondError(c, http.StatusUnauthorized, errors.New("token authentication is disabled"))
			return
		}

		userID, err := s.tokens.Verify(tokenString)
		if err != nil {
			s.respondError(c, http.StatusUnauthorized, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// callerID returns the id of the user making the request. A verified token
// wins; a user_id query parameter that disagrees with it is rejected.
func (s *Server) callerID(c *gin.Context) (int64, bool) {
	raw := c.Query("user_id")

	if v, ok := c.Get(userIDKey); ok {
		tokenID := v.(int64)
		if raw != "" {
			queryID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || queryID != tokenID {
				s.respondError(c, http.StatusForbidden, errors.New("user_id does not match token"))
				return 0, false
			}
		}
		return tokenID, true
	}

	return parseQueryID(c, "user_id")
}
