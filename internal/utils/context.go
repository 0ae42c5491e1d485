package utils

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/mindmap-dev/mindmap/internal/middleware"
	"github.com/mindmap-dev/mindmap/internal/types"
)

// ErrNotAuthenticated is wrapped by every error CurrentUser and CurrentUserID
// return. Handlers answer it with 401.
var ErrNotAuthenticated = errors.New("user not authenticated")

// CurrentUserID returns the id AuthMiddleware stored for this request. A
// zero id never identifies a user.
func CurrentUserID(ctx *gin.Context) (uint, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return 0, err
	}

	if user.ID == 0 {
		return 0, fmt.Errorf("%w: empty user id", ErrNotAuthenticated)
	}

	return user.ID, nil
}

func CurrentUser(ctx *gin.Context) (middleware.AuthenticatedUser, error) {
	value, exists := ctx.Get(types.ContextUserKey)
	if !exists {
		return middleware.AuthenticatedUser{}, ErrNotAuthenticated
	}

	user, ok := value.(middleware.AuthenticatedUser)
	if !ok {
		return middleware.AuthenticatedUser{}, fmt.Errorf("%w: context holds %T", ErrNotAuthenticated, value)
	}

	return user, nil
}
