package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var tokenKey string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Hash an admin key",
	Long: `Hashes an admin key with bcrypt. Set the output as ADMIN_KEY_HASH on the
API server, then exchange the key for a token at POST /api/v1/auth/token.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenKey, "key", "", "admin key to hash")
	_ = tokenCmd.MarkFlagRequired("key")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if keyHasher == nil {
		return errors.New("key hasher not configured")
	}
	key := strings.TrimSpace(tokenKey)
	if key == "" {
		return errors.New("key must not be empty")
	}

	hash, err := keyHasher.HashKey(key)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}

	cmd.Printf("ADMIN_KEY_HASH=%s\n", hash)
	return nil
}
