package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/baobao-chat/baochat/internal/client"
)

var (
	loginUser     string
	loginPassword string
)

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "username (defaults to auth.user_name)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (defaults to auth.password)")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		userName := loginUser
		if userName == "" {
			userName = cfg.Auth.UserName
		}
		password := loginPassword
		if password == "" {
			password = cfg.Auth.Password
		}
		if userName == "" {
			return fmt.Errorf("no username: pass --user or set auth.user_name")
		}

		c, err := client.New(cfg, nil)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.SignIn(ctx, userName, password); err != nil {
			return err
		}
		defer c.Channel().Close()

		identity := c.Session().Identity()
		fmt.Fprintf(os.Stdout, "Signed in as %s (%s)\n", identity.UserName, identity.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the persisted identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		c, err := client.New(cfg, nil)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Resume the session first so the server-side invalidation
		// carries a credential; a failed resume still wipes local state.
		if err := c.Start(ctx); err != nil {
			return err
		}
		if err := c.SignOut(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: server sign-out failed: %v\n", err)
		}
		fmt.Fprintln(os.Stdout, "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		c, err := client.New(cfg, nil)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.Start(ctx); err != nil {
			return err
		}
		defer c.Channel().Close()

		if !c.Session().Authenticated() {
			fmt.Fprintln(os.Stdout, "Not signed in")
			return nil
		}
		identity := c.Session().Identity()
		fmt.Fprintf(os.Stdout, "%s (%s)\n", identity.UserName, identity.ID)
		if identity.DisplayName != "" {
			fmt.Fprintf(os.Stdout, "Display name: %s\n", identity.DisplayName)
		}
		fmt.Fprintf(os.Stdout, "Unread: %d\n", c.State().TotalUnread())
		return nil
	},
}
