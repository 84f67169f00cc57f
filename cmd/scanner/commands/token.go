package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	httpmiddleware "github.com/wolfman30/spa-availability/internal/http/middleware"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

func init() {
	adminTokenCmd.Flags().StringVar(&tokenSubject, "subject", "ops", "token subject")
	adminTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(adminTokenCmd)
}

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Prints a bearer token for the /admin endpoints, signed with ADMIN_JWT_SECRET.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _ := loadConfig(cmd, nil)
		if cfg.AdminJWTSecret == "" {
			return errors.New("ADMIN_JWT_SECRET is not set")
		}
		now := time.Now()
		signed, err := httpmiddleware.SignAdminToken(cfg.AdminJWTSecret, tokenSubject, jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}
