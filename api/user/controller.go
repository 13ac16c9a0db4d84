// Package userapi serves the public user endpoints the game client and the
// registration front-end call.
package userapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openmelee/netplay-server/matchmaking"
	"github.com/openmelee/netplay-server/service/i"
)

// UserController manages the public user surface.
type UserController struct {
	users i.UserService
}

// NewUserController initializes a UserController.
func NewUserController(users i.UserService) (*UserController, error) {
	return &UserController{users: users}, nil
}

// RegisterPublic registers public routes.
func (uc *UserController) RegisterPublic(route *gin.RouterGroup) {
	user := route.Group("/user")
	{
		user.GET("/:uid", uc.getUser)
		user.POST("", uc.createUser)
	}
}

// RegisterProtected registers privileged routes.
func (uc *UserController) RegisterProtected(route *gin.RouterGroup) {}

// getUser returns the public view of a user. Unknown or malformed uids get
// the bare latest-version body, which is what the game client expects when
// its stored identity is stale.
func (uc *UserController) getUser(ctx *gin.Context) {
	uid, err := uuid.Parse(ctx.Params.ByName("uid"))
	if err != nil {
		ctx.JSON(http.StatusOK, &UserNotFoundResponse{LatestVersion: matchmaking.LatestClientVersion})
		return
	}

	user, err := uc.users.ByID(ctx, uid)
	if err != nil {
		ctx.JSON(http.StatusOK, &UserNotFoundResponse{LatestVersion: matchmaking.LatestClientVersion})
		return
	}

	response := &PublicUserResponse{
		UID:           user.ID.String(),
		DisplayName:   user.DisplayName,
		ConnectCode:   user.ConnectCode,
		LatestVersion: user.LatestVersion,
	}
	if response.LatestVersion == "" {
		response.LatestVersion = matchmaking.LatestClientVersion
	}
	ctx.JSON(http.StatusOK, response)
}

// createUser mints a playable account from a display name and connect code.
func (uc *UserController) createUser(ctx *gin.Context) {
	var request CreateUserRequest

	if err := ctx.ShouldBind(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := uc.users.Create(ctx, request.DisplayName, request.ConnectCode)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, &PublicUserResponse{
		UID:           user.ID.String(),
		DisplayName:   user.DisplayName,
		ConnectCode:   user.ConnectCode,
		LatestVersion: matchmaking.LatestClientVersion,
	})
}
