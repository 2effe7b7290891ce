package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "history",
		Short: "List recent attempts from the journal",
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
			if journal == nil {
				return fmt.Errorf("attempt journal disabled: DATABASE_URL is not set")
			}
			defer journal.Close()

			entries, err := journal.Recent(ctx, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				status := "fail"
				if e.Success {
					status = "ok"
				}
				fmt.Fprintf(os.Stdout, "%s  %-8s %-4s %s\n",
					e.At.Format("2006-01-02 15:04:05"), e.Action, status, e.Detail)
			}
			return nil
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return c
}
