package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// tailFile is swapped in tests.
var tailFile = tail.TailFile

// followProgress tails the solver log and reports it through the logger, throttled to one
// line per progress interval. Solver exit messages are always reported.
func (b *Bridge) followProgress(ctx context.Context, path string, done <-chan struct{}) error {
	t, err := tailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow solver log: %w", err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	limit := rate.Inf
	if b.progressInterval > 0 {
		limit = rate.Every(b.progressInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				b.logger.Warn("Error reading solver log", zap.Error(line.Err))
				continue
			}
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			if strings.HasPrefix(text, "EXIT") || limiter.Allow() {
				b.logger.Info("Solver progress", zap.String("line", text))
			}
		}
	}
}
