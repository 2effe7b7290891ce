package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/secret"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate SESSION_HASH_KEY and SESSION_BLOCK_KEY values (base64)",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := make([]byte, 32)
			block := make([]byte, 32)
			if _, err := rand.Read(hash); err != nil {
				return err
			}
			if _, err := rand.Read(block); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "export SESSION_HASH_KEY=%s\n", base64.StdEncoding.EncodeToString(hash))
			fmt.Fprintf(os.Stdout, "export SESSION_BLOCK_KEY=%s\n", base64.StdEncoding.EncodeToString(block))
			return nil
		},
	}
}

func newEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [password]",
		Short: "Encrypt the account password for storage in config.json",
		Long: "Encrypts the given password under WHULIB_PASSPHRASE and prints the value\n" +
			"to put in config.json's password field.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pass := os.Getenv("WHULIB_PASSPHRASE")
			if pass == "" {
				return fmt.Errorf("WHULIB_PASSPHRASE is not set")
			}
			blob, err := secret.Encrypt(pass, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "enc:%s\n", blob)
			return nil
		},
	}
}
