package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zapret-labs/tracker/internal/repository"
)

// AvatarSource abstracts the Telegram profile photo calls so tests can
// run without the network.
type AvatarSource interface {
	GetLatestProfilePhotoFileID(ctx context.Context, telegramID int64) (string, error)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// ProfileService keeps local avatar copies fresh. Refreshes are rate
// limited globally (the Bot API is shared with notifications) and per
// user through a cooldown, and a slow background sweep walks everyone.
type ProfileService struct {
	users   repository.UserRepository
	source  AvatarSource
	logger  *zap.Logger
	limiter *rate.Limiter

	uploadDir     string
	cooldown      time.Duration
	sweepInterval time.Duration

	mu          sync.Mutex
	lastRefresh map[int64]time.Time
	now         func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewProfileService constructs the refresher. rps bounds Bot API calls
// per second across all refreshes.
func NewProfileService(
	users repository.UserRepository,
	source AvatarSource,
	logger *zap.Logger,
	uploadDir string,
	cooldown, sweepInterval time.Duration,
	rps float64,
) *ProfileService {
	if rps <= 0 {
		rps = 10
	}
	return &ProfileService{
		users:         users,
		source:        source,
		logger:        logger,
		limiter:       rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		uploadDir:     uploadDir,
		cooldown:      cooldown,
		sweepInterval: sweepInterval,
		lastRefresh:   make(map[int64]time.Time),
		now:           time.Now,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Refresh re-downloads the user's Telegram avatar unless they were
// refreshed recently. Returns the stored relative path, or empty when
// the user has no photo.
func (s *ProfileService) Refresh(ctx context.Context, userID, telegramID int64) (string, error) {
	s.mu.Lock()
	if last, ok := s.lastRefresh[userID]; ok && s.now().Sub(last) < s.cooldown {
		s.mu.Unlock()
		return "", nil
	}
	s.lastRefresh[userID] = s.now()
	s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	fileID, err := s.source.GetLatestProfilePhotoFileID(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if fileID == "" {
		// Photo removed on Telegram's side; drop our copy too.
		if err := s.users.UpdatePhotoURL(ctx, userID, nil); err != nil {
			return "", err
		}
		return "", nil
	}

	data, err := s.source.DownloadFile(ctx, fileID)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("avatar_%d.jpg", userID)
	if err := os.WriteFile(filepath.Join(s.uploadDir, filename), data, 0o644); err != nil {
		return "", err
	}
	publicPath := "/uploads/" + filename
	if err := s.users.UpdatePhotoURL(ctx, userID, &publicPath); err != nil {
		return "", err
	}
	return publicPath, nil
}

// Start launches the periodic sweep over all users.
func (s *ProfileService) Start() {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweep loop.
func (s *ProfileService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *ProfileService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Warn("avatar sweep failed to list users", zap.Error(err))
		return
	}
	refreshed := 0
	for _, user := range users {
		select {
		case <-s.stopCh:
			return
		default:
		}
		if _, err := s.Refresh(ctx, user.ID, user.TelegramID); err != nil {
			s.logger.Debug("avatar refresh failed",
				zap.Int64("user_id", user.ID), zap.Error(err))
			continue
		}
		refreshed++
	}
	s.logger.Info("avatar sweep finished",
		zap.Int("users", len(users)), zap.Int("refreshed", refreshed))
}
