package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
	SessionCookieName   = "coinboard_session"
	controllerCtxKey    = "controller"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeaderKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(RequestIDHeaderKey, requestID)
		c.Set(RequestIDContextKey, requestID)
		c.Next()
	}
}

func loggerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"request_id": c.GetString(RequestIDContextKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Debug("HTTP request")
	}
}

// openSession attaches the caller's page controller to the context,
// creating a session when the cookie names none. The cookie is reissued on
// every request so its lifetime follows the server-side idle timeout.
func openSession(store *SessionStore, maxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(SessionCookieName)

		controller, sessionID, _ := store.Get(id)
		setSessionCookie(c, sessionID, maxAge)

		c.Set(controllerCtxKey, controller)
		c.Next()
	}
}

// requireSession attaches an existing session's controller, handing the
// request to onMissing when there is none
func requireSession(store *SessionStore, maxAge time.Duration, onMissing gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(SessionCookieName)

		controller, ok := store.Lookup(id)
		if !ok {
			onMissing(c)
			c.Abort()
			return
		}
		setSessionCookie(c, id, maxAge)

		c.Set(controllerCtxKey, controller)
		c.Next()
	}
}

func setSessionCookie(c *gin.Context, id string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, id, int(maxAge.Seconds()), "/", "", false, true)
}
