package handlers

import (
	"lexiboost/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// GetUserIDFromSession retrieves the current user ID from the cookie session.
// Returns (0, false) if no user is associated with the session.
func GetUserIDFromSession(c *gin.Context) (int, bool) {
	session := sessions.Default(c)
	userID := session.Get(middleware.UserIDKey)
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(int)
	if !ok {
		return 0, false
	}
	return id, true
}

// SetUserIDInSession associates the given user with the cookie session.
func SetUserIDInSession(c *gin.Context, userID int) error {
	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, userID)
	return session.Save()
}
