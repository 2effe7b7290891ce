package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "whulibseat",
		Short: "Books a WHU library study seat via the captcha-free app-channel bypass",
	}

	root.PersistentFlags().String("config", "config.json", "path to config.json")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newEncryptCmd())
	root.AddCommand(newReserveCmd())
	root.AddCommand(newReleaseCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newHistoryCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
