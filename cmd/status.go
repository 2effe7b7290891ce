package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the account's current reservation via the app channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger()
			ctx, cancel := runContext()
			defer cancel()

			ac := newAppClient(cfg, logger)
			cache := newCache(cfg)

			// Try the cached token first; a stale one just means one extra login.
			loggedIn := false
			if cache != nil {
				if st, err := cache.Load(); err == nil && st.Token != "" {
					ac.SetToken(st.Token)
					loggedIn = true
				}
			}
			if !loggedIn {
				if err := ac.Login(ctx); err != nil {
					return err
				}
				saveSession(cache, nil, ac, logger)
			}

			cur, err := ac.CurrentReservation(ctx)
			if errors.Is(err, reservation.ErrAuthentication) && loggedIn {
				if err := ac.Login(ctx); err != nil {
					return err
				}
				saveSession(cache, nil, ac, logger)
				cur, err = ac.CurrentReservation(ctx)
			}
			if err != nil {
				return err
			}

			if cur == nil {
				fmt.Fprintln(os.Stdout, "no active reservation")
				return nil
			}
			state := "reserved, not checked in"
			if cur.Status == reservation.StatusInUse {
				state = "checked in"
			}
			fmt.Fprintf(os.Stdout, "seat %s at %s, %s-%s on %s (%s, reservation %s)\n",
				cur.SeatID, cur.Location, cur.Begin, cur.End, cur.Date, state, cur.ID)
			return nil
		},
	}
}
