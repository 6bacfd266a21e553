package interfaces

import (
	"context"

	"access-portal/internal/api/dispatch"
	"access-portal/internal/database/repositories"
	"access-portal/internal/metrics"
	"access-portal/pkg/config"
	"access-portal/pkg/logger"
	"access-portal/pkg/token"
)

// Services defines the interface for API services
type Services interface {
	GetLogger() *logger.Logger
	GetConfig() *config.Config
	Metrics() *metrics.Registry
	Dispatcher() *dispatch.Dispatcher
	TokenService() *token.Service
	AuthService() AuthService
	PersonRepository() *repositories.PersonRepository
	SessionRepository() *repositories.SessionRepository
	CapabilityRepository() *repositories.CapabilityRepository
	Ping(ctx context.Context) error
}
