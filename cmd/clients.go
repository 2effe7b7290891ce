package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/appchan"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/config"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/sessioncache"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/timeslot"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/webchan"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// runContext is cancelled on SIGINT/SIGTERM so every sleep point in the loops
// observes the stop signal.
func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

func newCache(cfg config.Config) *sessioncache.Cache {
	if cfg.SessionCachePath == "" {
		return nil
	}
	return sessioncache.New(cfg.SessionCachePath, cfg.SessionHashKey, cfg.SessionBlockKey)
}

func newWebClient(cfg config.Config, logger *slog.Logger) (*webchan.Client, bool, error) {
	date, isTomorrow := timeslot.ComputeReserveDate(time.Now())
	logger.Info("reserve date computed", "date", date, "tomorrow", isTomorrow)
	wc, err := webchan.New(webchan.Config{
		BaseURL:  cfg.WebBaseURL,
		Username: cfg.Username,
		Password: cfg.Password,
		Logger:   logger,
	}, date, isTomorrow)
	return wc, isTomorrow, err
}

func newAppClient(cfg config.Config, logger *slog.Logger) *appchan.Client {
	return appchan.New(appchan.Config{
		BaseURL:  cfg.AppBaseURL,
		Username: cfg.Username,
		Password: cfg.Password,
		Logger:   logger,
	})
}

// saveSession persists both channels' material; best effort.
func saveSession(cache *sessioncache.Cache, wc *webchan.Client, ac *appchan.Client, logger *slog.Logger) {
	if cache == nil {
		return
	}
	st := sessioncache.State{}
	if wc != nil {
		st.Cookies = wc.Cookies()
	}
	if ac != nil {
		st.Token = ac.Token()
	}
	if err := cache.Save(st); err != nil {
		logger.Warn("session cache save failed", "err", err)
	}
}
