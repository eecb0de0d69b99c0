package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/jwt"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "learnability",
		Short: "learnability ingestion and retrieval backend",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional; real environment variables win.
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			return runServer(a)
		},
	}

	var reset bool
	ensureCmd := &cobra.Command{
		Use:   "ensure-collection",
		Short: "create the vector collection and its indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())
			return ensureCollection(cmd.Context(), a, reset)
		},
	}
	ensureCmd.Flags().BoolVar(&reset, "reset", false, "drop the collection before creating it")

	var owner, documentID string
	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "re-run ingestion for an owner's uploaded files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return fmt.Errorf("--owner is required")
			}
			a, err := bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())
			return reindex(cmd.Context(), a, owner, documentID, cmd.OutOrStdout())
		},
	}
	reindexCmd.Flags().StringVar(&owner, "owner", "", "owner id")
	reindexCmd.Flags().StringVar(&documentID, "document", "", "only reindex this document")

	var tokenOwner string
	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "issue a bearer token for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenOwner == "" {
				return fmt.Errorf("--owner is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			token, err := jwt.GenerateToken(tokenOwner, []byte(cfg.JWTSecret), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	tokenCmd.Flags().StringVar(&tokenOwner, "owner", "", "owner id")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(runCmd, ensureCmd, reindexCmd, tokenCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}
