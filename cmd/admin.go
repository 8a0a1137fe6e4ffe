/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aquanet/apiserver/internal/auth"
	"github.com/aquanet/apiserver/internal/db"
	"github.com/aquanet/apiserver/internal/services"
	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

const adminPasswordEnv = "ADMIN_PASSWORD"

var (
	adminUsername string
	adminEmail    string
	adminFullName string
)

// adminCmd represents the admin command
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	Long: `Create an administrator account. The password is read from
ADMIN_PASSWORD, or from the first line of stdin when it is unset.

	ADMIN_PASSWORD=... aquanet admin create --username root --email root@example.org
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		password, err := adminPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn), auth.NewPasswordHasher(cfg.Auth.BcryptCost))
		in := types.UserCreate{Username: adminUsername, Password: password}
		if adminEmail != "" {
			in.Email = &adminEmail
		}
		if adminFullName != "" {
			in.FullName = &adminFullName
		}

		admin, err := users.CreateAdmin(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		log.Info("administrator created", "user_id", admin.ID, "username", admin.Username)
		fmt.Fprintf(cmd.OutOrStdout(), "created administrator %q (id %d)\n", admin.Username, admin.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().StringVar(&adminUsername, "username", "admin", "login name")
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "email address")
	adminCreateCmd.Flags().StringVar(&adminFullName, "full-name", "", "display name, defaults to the username")
}

func adminPassword(stdin io.Reader) (string, error) {
	if pw := os.Getenv(adminPasswordEnv); pw != "" {
		return pw, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password required: set " + adminPasswordEnv + " or pipe it on stdin")
	}
	return pw, nil
}
