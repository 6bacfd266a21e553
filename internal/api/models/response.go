package models

// Client-facing messages.
const (
	MsgAuthenticationRequired = "Authentication required."
	MsgForbidden              = "Forbidden."
	MsgBearerMissing          = "Bearer token is missing."
	MsgInvalidToken           = "Invalid or expired token."
	MsgTokenExpired           = "Token expired. Please log in again."
	MsgMethodNotAllowed       = "Method not allowed."
	MsgDatabaseWarmingUp      = "The database may be warming up. Please try again."
	MsgInternalError          = "Internal server error. Check the logs for details."
)

// MessageResponse is the body of every error response.
type MessageResponse struct {
	Message string `json:"message" example:"Authentication required."`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool        `json:"success" example:"true"`
	Message string      `json:"message,omitempty" example:"Operation completed successfully"`
	Data    interface{} `json:"data,omitempty"`
}

// SessionResponse is returned by a successful login.
type SessionResponse struct {
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Session   string `json:"session" example:"3f0c1f8e-7f5c-4a43-9a1b-0b1f7cbbf2d4"`
	ExpiresAt int64  `json:"expires_at" example:"1640995200"`
	FirstName string `json:"first_name" example:"Ada"`
	LastName  string `json:"last_name" example:"Lovelace"`
}

// CapabilitiesResponse lists the capabilities available to the caller.
type CapabilitiesResponse struct {
	Guest        bool     `json:"guest" example:"false"`
	Capabilities []string `json:"capabilities" example:"delete,edit,publish"`
}

// TokenResponse holds the verified claims of a bearer token.
type TokenResponse struct {
	FirstName string `json:"first_name" example:"Ada"`
	LastName  string `json:"last_name" example:"Lovelace"`
	IssuedAt  int64  `json:"issued_at" example:"1640995200"`
	ExpiresAt int64  `json:"expires_at" example:"1641009600"`
}

// PersonResponse represents the authenticated person
type PersonResponse struct {
	ID           int64    `json:"id" example:"123"`
	Email        string   `json:"email" example:"ada@example.com"`
	FirstName    string   `json:"first_name" example:"Ada"`
	LastName     string   `json:"last_name" example:"Lovelace"`
	Capabilities []string `json:"capabilities" example:"profile:read"`
}

// HealthCheckResponse represents health check response
type HealthCheckResponse struct {
	Status    string                 `json:"status" example:"healthy"`
	Timestamp int64                  `json:"timestamp" example:"1640995200"`
	Version   string                 `json:"version" example:"1.0.0"`
	Uptime    int64                  `json:"uptime" example:"86400"`
	Checks    map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents individual health check
type HealthCheck struct {
	Status  string `json:"status" example:"healthy"`
	Message string `json:"message,omitempty" example:"Service is running normally"`
	Latency string `json:"latency,omitempty" example:"5ms"`
}
