package sso

// User is the directory entry the middleware needs when a token carries no permissions
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type userResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    User   `json:"data"`
}
