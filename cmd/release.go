package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/history"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/release"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/searchloop"
)

func newReleaseCmd() *cobra.Command {
	var fallbackSearch bool

	c := &cobra.Command{
		Use:   "release",
		Short: "Release the current reservation and immediately rebook the same seat",
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

			ac := newAppClient(cfg, logger)
			if err := ac.Login(ctx); err != nil {
				return err
			}
			wc, isTomorrow, err := newWebClient(cfg, logger)
			if err != nil {
				return err
			}
			if err := wc.Login(ctx); err != nil {
				return err
			}
			saveSession(newCache(cfg), wc, ac, logger)

			coord := &release.Coordinator{
				App:      ac,
				Web:      wc,
				Logger:   logger,
				Recorder: journal,
			}
			out, err := coord.Run(ctx, cfg.Filter.StartTime, cfg.Filter.EndTime)
			if err != nil {
				var reacq *reservation.ReacquisitionFailedError
				if fallbackSearch && errors.As(err, &reacq) {
					logger.Warn("reacquisition failed, falling back to search",
						"seat", reacq.SeatID, "err", reacq.Err)
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
					out, err = loop.Run(ctx)
				}
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(os.Stdout, "rebooked seat at %s, %s-%s on %s (reservation %s)\n",
				out.Location, out.Begin, out.End, out.Date, out.ReservationID)
			return nil
		},
	}
	c.Flags().BoolVar(&fallbackSearch, "fallback-search", false,
		"run the normal seat search if the old seat was released but could not be rebooked")
	return c
}
