package userapi

// CreateUserRequest mints a playable account.
type CreateUserRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
	ConnectCode string `json:"connectCode" binding:"required"`
}

// PublicUserResponse is the public view of a user.
type PublicUserResponse struct {
	UID           string `json:"uid"`
	DisplayName   string `json:"displayName"`
	ConnectCode   string `json:"connectCode"`
	LatestVersion string `json:"latestVersion"`
}

// UserNotFoundResponse is returned for unknown uids; the client still needs
// the latest version to decide whether to prompt an update.
type UserNotFoundResponse struct {
	LatestVersion string `json:"latestVersion"`
}
