package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"access-portal/internal/api/dispatch"
	"access-portal/internal/api/interfaces"
	"access-portal/internal/api/models"
	"access-portal/internal/database"
	"access-portal/internal/database/repositories"
	"access-portal/internal/metrics"
	"access-portal/pkg/config"
	"access-portal/pkg/logger"
	"access-portal/pkg/token"
)

// Services contains all the dependencies for API handlers
type Services struct {
	// Core dependencies
	DB     *sql.DB
	Logger *logger.Logger
	Config *config.Config

	tokens     *token.Service
	metrics    *metrics.Registry
	dispatcher *dispatch.Dispatcher

	// Auth service interface
	authService interfaces.AuthService

	// Repositories
	personRepository     *repositories.PersonRepository
	sessionRepository    *repositories.SessionRepository
	capabilityRepository *repositories.CapabilityRepository

	now             func() time.Time
	comparePassword func(hash, password []byte) error
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

// dummyPasswordHash is compared against when an email is unknown so both failures cost
// one bcrypt run.
var dummyPasswordHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("portal-unknown-person"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
})

// NewServices creates a new services container
func NewServices(db *sql.DB, log *logger.Logger, cfg *config.Config) (*Services, error) {
	tokens, err := token.NewService(cfg.Security.JWTSecret, token.WithLifetime(cfg.Security.TokenLifetime))
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	services := &Services{
		DB:      db,
		Logger:  log,
		Config:  cfg,
		tokens:  tokens,
		metrics: metrics.NewRegistry(),
		now:     time.Now,

		comparePassword: bcrypt.CompareHashAndPassword,
	}

	// Initialize auth service
	services.authService = services

	// Initialize repositories
	services.personRepository = repositories.NewPersonRepository(db)
	services.sessionRepository = repositories.NewSessionRepository(db)
	services.capabilityRepository = repositories.NewCapabilityRepository(db,
		repositories.WithCapabilityClock(func() time.Time { return services.now() }))

	classifier := dispatch.NewClassifier(log, cfg.Status, services.authService, services.metrics)
	services.dispatcher = dispatch.NewDispatcher(classifier)

	return services, nil
}

// Start starts all background services
func (s *Services) Start() {
	interval := s.Config.Security.SweepInterval
	if interval <= 0 {
		s.Logger.Info("Expired session sweep disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepSessions(ctx)
			}
		}
	}()

	s.Logger.Info("Expired session sweep started - interval: %s", interval)
}

// Stop stops all background services
func (s *Services) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.Logger.Info("All API services stopped")
}

func (s *Services) sweepSessions(ctx context.Context) {
	n, err := s.sessionRepository.DeleteExpired(ctx, s.now())
	if err != nil {
		s.Logger.Error("Expired session sweep failed: %v", err)
		return
	}
	if n > 0 {
		s.Logger.Info("Expired sessions removed", "count", n)
	}
}

// Interface implementation methods
func (s *Services) GetLogger() *logger.Logger {
	return s.Logger
}

func (s *Services) GetConfig() *config.Config {
	return s.Config
}

func (s *Services) Metrics() *metrics.Registry {
	return s.metrics
}

func (s *Services) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

func (s *Services) TokenService() *token.Service {
	return s.tokens
}

func (s *Services) AuthService() interfaces.AuthService {
	return s.authService
}

func (s *Services) PersonRepository() *repositories.PersonRepository {
	return s.personRepository
}

func (s *Services) SessionRepository() *repositories.SessionRepository {
	return s.sessionRepository
}

func (s *Services) CapabilityRepository() *repositories.CapabilityRepository {
	return s.capabilityRepository
}

// Ping checks the database connection
func (s *Services) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Authenticate implements interfaces.AuthService
func (s *Services) Authenticate(ctx context.Context, email, password string) (*database.Person, error) {
	person, err := s.personRepository.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		_ = s.comparePassword(dummyPasswordHash(), []byte(password))
		return nil, models.WrapError(models.KindUnauthorized, "unknown email", err)
	}
	if err != nil {
		return nil, err
	}

	if err := s.comparePassword([]byte(person.PasswordHash), []byte(password)); err != nil {
		return nil, models.WrapError(models.KindUnauthorized, "password mismatch", err)
	}

	return person, nil
}

// StartSession implements interfaces.AuthService
func (s *Services) StartSession(ctx context.Context, person *database.Person) (*database.Session, error) {
	now := s.now()
	session := &database.Session{
		Session:   uuid.NewString(),
		PeopleID:  person.ID,
		ExpiresAt: now.Add(s.Config.Security.SessionLifetime),
		CreatedAt: now,
	}
	if err := s.sessionRepository.Create(ctx, session); err != nil {
		return nil, err
	}

	s.Logger.SecurityLogger("session_started", person.Email, "session "+maskSession(session.Session))
	return session, nil
}

// Logout deletes the caller's session row and expires the session cookie. A request
// without a session cookie has nothing to delete.
func (s *Services) Logout(c *gin.Context) error {
	name := s.Config.Security.SessionCookie
	session, err := c.Cookie(name)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", s.Config.Security.SecureCookies, true)

	if err != nil || session == "" {
		return nil
	}

	deleted, err := s.sessionRepository.Delete(c.Request.Context(), session)
	if err != nil {
		return err
	}
	if deleted {
		s.Logger.SecurityLogger("session_terminated", maskSession(session), c.ClientIP())
	}
	return nil
}

func maskSession(session string) string {
	if len(session) <= 8 {
		return "****"
	}
	return session[:8] + "****"
}
