package vk

// AuthResponse is the answer of the token endpoint.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       string `json:"user_id"`
	DeviceID     string `json:"device_id"`
}

// LaunchContext is the authorization result handed back through the deep link.
type LaunchContext struct {
	DeviceID string `json:"device_id"`
	Code     string `json:"code"`
}

// AuthorizationRequest describes a started authorization.
type AuthorizationRequest struct {
	AuthSessionID string
	DeepLink      string
	URL           string
	PKCE          *PKCECodes
}
