package session

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront-client/internal/domain"
	"storefront-client/internal/events"
)

type sessionRepo interface {
	Get(ctx context.Context, profile string) (*domain.Session, error)
	Save(ctx context.Context, profile string, s domain.Session) error
	Delete(ctx context.Context, profile string) error
}

// Service owns the credentials of one profile. Reads are served from memory;
// writes go to the repository first and only then replace the in-memory view.
type Service struct {
	repo    sessionRepo
	bus     events.Publisher
	profile string
	logger  logrus.FieldLogger
	now     func() time.Time

	mu      sync.RWMutex
	current domain.Session
}

func New(repo sessionRepo, bus events.Publisher, profile string, logger logrus.FieldLogger) *Service {
	return &Service{
		repo:    repo,
		bus:     bus,
		profile: profile,
		logger:  logger.WithFields(logrus.Fields{"component": "session", "profile": profile}),
		now:     time.Now,
	}
}

// Load reads the persisted session, if any. A missing record leaves the
// service anonymous.
func (s *Service) Load(ctx context.Context) error {
	stored, err := s.repo.Get(ctx, s.profile)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.swap(domain.Session{})
		return nil
	case err != nil:
		return pkgerrors.Wrap(err, "load session")
	}
	s.swap(*stored)
	s.logger.WithField("authenticated", stored.AccessToken != "").Info("session loaded")
	s.publish()
	return nil
}

// Close drops the in-memory credentials. The persisted record is kept.
func (s *Service) Close() error {
	s.swap(domain.Session{})
	return nil
}

func (s *Service) IsAuthenticated() bool {
	_, ok := s.AccessToken()
	return ok
}

func (s *Service) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken, s.current.AccessToken != ""
}

func (s *Service) RefreshToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.RefreshToken, s.current.RefreshToken != ""
}

// User returns a copy of the cached identity, or nil when anonymous.
func (s *Service) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.User == nil {
		return nil
	}
	u := *s.current.User
	return &u
}

// Snapshot returns a copy of the whole session.
func (s *Service) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.current
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

// SaveAuth persists the token pair and user in a single write.
func (s *Service) SaveAuth(ctx context.Context, access, refresh string, user *domain.User) error {
	if access == "" {
		return pkgerrors.New("access token required")
	}
	next := domain.Session{AccessToken: access, RefreshToken: refresh, SavedAt: s.now().UTC()}
	if user != nil {
		u := *user
		next.User = &u
	}
	if err := s.repo.Save(ctx, s.profile, next); err != nil {
		return pkgerrors.Wrap(err, "save session")
	}
	s.swap(next)
	s.logger.Info("session saved")
	s.publish()
	return nil
}

// ClearAuth removes the persisted session. Clearing an already anonymous
// profile is not an error.
func (s *Service) ClearAuth(ctx context.Context) error {
	if err := s.repo.Delete(ctx, s.profile); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return pkgerrors.Wrap(err, "clear session")
	}
	s.swap(domain.Session{})
	s.logger.Info("session cleared")
	s.publish()
	return nil
}

func (s *Service) swap(next domain.Session) {
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
}

func (s *Service) publish() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TopicAuthChanged, events.AuthChanged{
		Authenticated: s.IsAuthenticated(),
		User:          s.User(),
	})
}
