package handlers

import (
	"context"
	"strconv"

	"lexiboost/internal/models"
	"lexiboost/internal/services"
)

// resolveUser turns the :user path parameter into a user record. The
// parameter is accepted as either a numeric ID or a username.
func resolveUser(ctx context.Context, userService services.UserServiceInterface, ref string) (*models.User, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		return userService.GetUserByID(ctx, id)
	}
	return userService.GetUserByUsername(ctx, ref)
}
