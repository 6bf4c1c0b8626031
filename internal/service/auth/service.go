package auth

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"storefront-client/internal/domain"
	"storefront-client/internal/events"
	"storefront-client/internal/shopapi"
)

const (
	guestLoginMessage  = "Logged in as guest! You can now add items to cart."
	googleLoginMessage = "Google login successful!"
	logoutMessage      = "Logged out"
)

type loginAPI interface {
	GuestLogin(ctx context.Context) (*shopapi.Tokens, error)
	GoogleLogin(ctx context.Context, idToken string) (*shopapi.Tokens, error)
	VerifyToken(ctx context.Context, token string) (*domain.User, error)
}

type sessionStore interface {
	AccessToken() (string, bool)
	SaveAuth(ctx context.Context, access, refresh string, user *domain.User) error
	ClearAuth(ctx context.Context) error
}

// Service runs the guest and Google logins and hands the result to the session.
type Service struct {
	api     loginAPI
	session sessionStore
	bus     events.Publisher
	logger  logrus.FieldLogger
}

func New(api loginAPI, session sessionStore, bus events.Publisher, logger logrus.FieldLogger) *Service {
	return &Service{api: api, session: session, bus: bus, logger: logger.WithField("component", "auth")}
}

func (s *Service) GuestLogin(ctx context.Context) (*domain.User, error) {
	tokens, err := s.api.GuestLogin(ctx)
	return s.complete(ctx, "guest", tokens, err, guestLoginMessage, "Guest login failed: ")
}

func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*domain.User, error) {
	if idToken == "" {
		err := &domain.LoginError{Message: "id token required"}
		s.notify(events.LevelError, "Google login failed: "+err.Message)
		return nil, err
	}
	tokens, err := s.api.GoogleLogin(ctx, idToken)
	return s.complete(ctx, "google", tokens, err, googleLoginMessage, "Google login failed: ")
}

// Logout forgets the local credentials. The backend keeps no server-side
// session for the client to end.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.session.ClearAuth(ctx); err != nil {
		s.logger.WithError(err).Error("logout failed")
		return err
	}
	s.notify(events.LevelInfo, logoutMessage)
	return nil
}

// Verify checks the stored access token with the backend and returns the
// user it belongs to. The session is left as it is either way.
func (s *Service) Verify(ctx context.Context) (*domain.User, error) {
	access, ok := s.session.AccessToken()
	if !ok {
		return nil, domain.ErrAuthRequired
	}
	user, err := s.api.VerifyToken(ctx, access)
	if err != nil {
		s.logger.WithError(err).Info("token verification failed")
		return nil, err
	}
	return user, nil
}

func (s *Service) complete(ctx context.Context, method string, tokens *shopapi.Tokens, err error, okMsg, failPrefix string) (*domain.User, error) {
	log := s.logger.WithField("method", method)
	if err != nil {
		log.WithError(err).Warn("login failed")
		s.notify(events.LevelError, failPrefix+loginMessage(err))
		return nil, err
	}
	if err := s.session.SaveAuth(ctx, tokens.Access, tokens.Refresh, tokens.User); err != nil {
		log.WithError(err).Error("persist session")
		s.notify(events.LevelError, failPrefix+"could not save session")
		return nil, err
	}
	log.Info("logged in")
	s.notify(events.LevelSuccess, okMsg)
	return tokens.User, nil
}

func (s *Service) notify(level events.Level, message string) {
	if s.bus != nil {
		s.bus.Publish(events.TopicNotice, events.Notice{Level: level, Message: message})
	}
}

func loginMessage(err error) string {
	var loginErr *domain.LoginError
	if errors.As(err, &loginErr) && loginErr.Message != "" {
		return loginErr.Message
	}
	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Error()
	}
	return err.Error()
}
