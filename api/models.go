package api

import "time"

// Response is the JSON envelope every endpoint returns. Code mirrors the
// HTTP status so browser clients that only read the body behave the same
// as ones that read the status line.
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Success wraps data in a 200 envelope.
func Success(data interface{}) Response {
	return Response{
		Code:      200,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Error builds a failure envelope carrying a client-safe message.
func Error(code int, message string) Response {
	return Response{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}

// UserInfo is the public mirror of a local user record.
type UserInfo struct {
	ID          string    `json:"id"`
	ProviderID  int64     `json:"provider_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// LoginData is the callback success payload.
type LoginData struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	TokenType    string   `json:"token_type"`
	UserInfo     UserInfo `json:"user_info"`
	LoginTime    int64    `json:"login_time"`
}

// LoginURLData is returned instead of a redirect when the client asked to
// navigate itself.
type LoginURLData struct {
	AuthorizationURL string `json:"authorization_url"`
}

// RefreshRequest is the refresh endpoint's body.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshData is the refresh endpoint's success payload.
type RefreshData struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
