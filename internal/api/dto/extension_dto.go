package dto

// RegisterRequest announces extension presence for a user.
type RegisterRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	AuthToken string `json:"auth_token" binding:"required"`
}

// PollRequest asks for jobs created since the last poll cycle.
type PollRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	AuthToken string `json:"auth_token" binding:"required"`
}

// SaveCredentialsRequest stores marketplace credentials for a connection.
type SaveCredentialsRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Platform string `json:"platform" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
