package identity

// RegisterRequest creates a credentialed account.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
	ConnectCode string `json:"connectCode" binding:"required"`
}

// RegisterResponse echoes the created identity, including the play key the
// game client stores locally.
type RegisterResponse struct {
	UID         string `json:"uid"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	ConnectCode string `json:"connectCode"`
	PlayKey     string `json:"playKey"`
}

// AuthRequest carries login credentials.
type AuthRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the bearer token issued on login.
type AuthResponse struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Token    string `json:"token"`
}
