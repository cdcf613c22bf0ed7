package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/punchclock/internal/constants"
	"github.com/kozaktomas/punchclock/internal/database"
	"github.com/kozaktomas/punchclock/internal/web/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token <employee-id>",
	Short: "Issue an identity token for local testing",
	Long: `Issue an HS256 identity token signed with AUTH_JWT_SECRET.
In production tokens are issued by the external authentication system; this
command exists for development and smoke tests.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("role", database.RoleEmployee, "Role claim (employee or admin)")
	tokenCmd.Flags().Duration("ttl", constants.DefaultTokenTTL, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	role := mustGetString(cmd, "role")
	ttl := mustGetDuration(cmd, "ttl")
	if role != database.RoleEmployee && role != database.RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Web.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET environment variable is required")
	}

	token, err := middleware.IssueToken(cfg.Web.JWTSecret, args[0], role, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
