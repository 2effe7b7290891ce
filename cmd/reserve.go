package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/history"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/searchloop"
)

func newReserveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reserve",
		Short: "Poll for a free seat matching the configured filter and book it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger()
			ctx, cancel := runContext()
			defer cancel()

			journal, err := history.Open(ctx, cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer journal.Close()

			wc, isTomorrow, err := newWebClient(cfg, logger)
			if err != nil {
				return err
			}
			if err := wc.Login(ctx); err != nil {
				return err
			}
			saveSession(newCache(cfg), wc, nil, logger)

			loop := &searchloop.Loop{
				Web:             wc,
				Filter:          cfg.Filter,
				IsTomorrow:      isTomorrow,
				Interval:        cfg.PollInterval,
				Jitter:          2 * time.Second,
				GateMargin:      cfg.GateMargin,
				PreReserveDelay: time.Second,
				Logger:          logger,
				Recorder:        journal,
			}
			out, err := loop.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "reserved seat at %s, %s-%s on %s (reservation %s, %d search attempts)\n",
				out.Location, out.Begin, out.End, out.Date, out.ReservationID, out.Attempts)
			return nil
		},
	}
}
