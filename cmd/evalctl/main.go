package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/domain/evaluation"
	"evalconsole/internal/domain/org"
	"evalconsole/internal/platform/apiclient"
	"evalconsole/internal/platform/crypto"
	"evalconsole/internal/platform/session"
)

var rootCmd = &cobra.Command{
	Use:   "evalctl",
	Short: "Evaluation console CLI",
	Long: `evalctl drives performance evaluations against the HR API.
Sign in once with 'evalctl login'; the refresh token is kept in a local
session file and exchanged for a fresh access token on every run.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("EVALCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("evalctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.evalctl")
		}
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && viper.GetString("config") != "" {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
	}
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ./evalctl.yaml or ~/.evalctl/evalctl.yaml)")
	flags.String("api-url", "", "HR API base URL")
	flags.Duration("timeout", apiclient.DefaultTimeout, "API request timeout")
	flags.String("session", session.DefaultPath(), "session file")
	flags.String("session-key", "", "32-byte key (hex or base64) sealing the stored refresh token")
	flags.StringP("output", "o", "table", "output format: table, json or yaml")
	flags.String("timezone", "UTC", "zone activity days are grouped in")
	for _, name := range []string{"config", "api-url", "timeout", "session", "session-key", "output", "timezone"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(evalCmd())
	rootCmd.AddCommand(objectiveCmd())
	rootCmd.AddCommand(competencyCmd())
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(employeeCmd())
	rootCmd.AddCommand(importCmd())
}

func newClient() (*apiclient.Client, error) {
	baseURL := strings.TrimSpace(viper.GetString("api-url"))
	if baseURL == "" {
		return nil, fmt.Errorf("--api-url or EVALCTL_API_URL is required")
	}
	return apiclient.New(baseURL, viper.GetDuration("timeout")), nil
}

func openStore(ctx context.Context) (*session.Store, error) {
	sealer, err := crypto.New(viper.GetString("session-key"))
	if err != nil {
		return nil, err
	}
	store, err := session.Open(ctx, viper.GetString("session"))
	if err != nil {
		return nil, err
	}
	store.Sealer = sealer
	return store, nil
}

// console is one signed-in CLI run.
type console struct {
	Client      *apiclient.Client
	Store       *session.Store
	User        auth.UserContext
	Evaluations *evaluation.Service
	Org         *org.Service
}

func (c *console) actor() evaluation.Actor {
	return evaluation.ActorFromUser(c.User)
}

// withConsole restores the stored session, trades the refresh token for an
// access token and runs fn. Rotated refresh tokens are written back.
func withConsole(ctx context.Context, fn func(context.Context, *console) error) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	stored, refresh, err := store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return fmt.Errorf("not signed in; run 'evalctl login'")
	}
	if err != nil {
		return err
	}

	tokens := apiclient.NewRefreshingTokens(client, "", refresh)
	tokens.OnRefresh = func(s apiclient.Session) {
		user := stored
		if s.User.ID != "" {
			user = s.User
		}
		if err := store.Save(context.WithoutCancel(ctx), user, s.RefreshToken); err != nil {
			fmt.Fprintln(os.Stderr, "warning: session not saved:", err)
		}
	}
	client.Tokens = tokens

	access, err := tokens.Refresh(ctx)
	if err != nil {
		if apiclient.IsStatus(err, http.StatusUnauthorized) || apiclient.IsStatus(err, http.StatusBadRequest) {
			_ = store.Clear(ctx)
			return fmt.Errorf("session expired; run 'evalctl login'")
		}
		return fmt.Errorf("refresh session: %w", err)
	}
	user, err := auth.UserFromToken(access)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	fillUser(&user, stored)

	loc, err := time.LoadLocation(viper.GetString("timezone"))
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	evaluations := evaluation.NewService(client, nil, nil)
	evaluations.Location = loc

	return fn(ctx, &console{
		Client:      client,
		Store:       store,
		User:        user,
		Evaluations: evaluations,
		Org:         org.NewService(client, nil),
	})
}

// fillUser completes token claims with what the login response said.
func fillUser(user *auth.UserContext, stored org.User) {
	if user.UserID == "" {
		user.UserID = string(stored.ID)
	}
	if user.EmployeeID == "" {
		user.EmployeeID = string(stored.EmployeeID)
	}
	if user.Name == "" {
		user.Name = strings.TrimSpace(stored.FirstName + " " + stored.LastName)
		if user.Name == "" {
			user.Name = stored.Username
		}
	}
	if user.Role == "" {
		user.Role = auth.ParseRole(stored.Role)
	}
}
