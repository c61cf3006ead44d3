package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/pricehawk/internal/extract"
)

// ErrBlocked is wrapped in a NavigationError when the shop served an
// anti-bot page instead of the product.
var ErrBlocked = errors.New("blocked by anti-bot page")

// NavigationError means the page could not be reached or rendered in time.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Session is one isolated browser context and page. It is single use.
type Session struct {
	page     extract.Page
	navigate func(url string) error
	closers  []func() error

	once     sync.Once
	closeErr error
}

func newSession(page extract.Page, navigate func(string) error, closers ...func() error) *Session {
	return &Session{page: page, navigate: navigate, closers: closers}
}

// Close releases the session. Only the first call does any work.
func (s *Session) Close() error {
	s.once.Do(func() {
		var errs []error
		for _, c := range s.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func runSession(ctx context.Context, s *Session, url string, settle time.Duration, logger *slog.Logger, fn func(extract.Page) error) error {
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("failed to close session", "url", url, "error", err)
		}
	}()

	start := time.Now()
	if err := s.navigate(url); err != nil {
		return &NavigationError{URL: url, Err: err}
	}

	if settle > 0 {
		timer := time.NewTimer(settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &NavigationError{URL: url, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	logger.Info("page loaded", "url", url, "final_url", s.page.URL(), "duration", time.Since(start))

	return fn(s.page)
}
