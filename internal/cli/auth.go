package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yolodolo42/questline/internal/api"
	"github.com/yolodolo42/questline/internal/auth"
	"github.com/yolodolo42/questline/internal/config"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Log in to a game server",
	Long: `Log in, log out and check the account used for saved stories.
The session cookie is stored in ~/.questline/auth.json per server.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in and remember the session cookie",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthLogin,
}

var authRegisterCmd = &cobra.Command{
	Use:   "register [username]",
	Short: "Create an account",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthRegister,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the session cookie",
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who the server thinks you are",
	RunE:  runAuthStatus,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List servers with a stored login",
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authRegisterCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authListCmd)
}

func getAuthStore() (*auth.Store, error) {
	dir, err := config.DataDir()
	if err != nil {
		return nil, err
	}
	return auth.NewStore(dir)
}

// sessionCookie returns the explicitly configured cookie, falling back to the
// one stored by 'questline auth login'.
func sessionCookie() string {
	if cfg.Cookie != "" {
		return cfg.Cookie
	}
	store, err := getAuthStore()
	if err != nil {
		logger.Warn("auth store unavailable", "error", err)
		return ""
	}
	return store.Cookie(cfg.ServerURL)
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // newline after password input
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func readCredentials(cmd *cobra.Command, args []string) (string, string, error) {
	username := ""
	if len(args) == 1 {
		username = args[0]
	} else {
		var err error
		username, err = ask(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), "Username: ")
		if err != nil {
			return "", "", err
		}
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return "", "", fmt.Errorf("username is required")
	}

	if !isInteractive() {
		return "", "", errNotInteractive
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", "", fmt.Errorf("password is required")
	}
	return username, password, nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	username, password, err := readCredentials(cmd, args)
	if err != nil {
		return err
	}
	return login(cmd.Context(), username, password)
}

func login(parent context.Context, username, password string) error {
	store, err := getAuthStore()
	if err != nil {
		return fmt.Errorf("failed to open auth store: %w", err)
	}

	ctx, cancel := context.WithTimeout(parent, cfg.RequestTimeout)
	defer cancel()

	client := api.NewClient(api.Options{BaseURL: cfg.ServerURL, Timeout: cfg.RequestTimeout, Logger: logger})
	cookie, err := client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := store.Set(cfg.ServerURL, auth.Credential{Username: username, Cookie: cookie}); err != nil {
		return fmt.Errorf("failed to save login: %w", err)
	}

	fmt.Printf("Logged in to %s as %s.\n", cfg.ServerURL, username)
	return nil
}

func runAuthRegister(cmd *cobra.Command, args []string) error {
	username, password, err := readCredentials(cmd, args)
	if err != nil {
		return err
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	err = api.NewClient(api.Options{BaseURL: cfg.ServerURL, Timeout: cfg.RequestTimeout, Logger: logger}).
		Register(ctx, username, password)
	cancel()
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Println("Account created.")
	return login(cmd.Context(), username, password)
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	store, err := getAuthStore()
	if err != nil {
		return fmt.Errorf("failed to open auth store: %w", err)
	}

	if _, err := store.Get(cfg.ServerURL); err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
			return nil
		}
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()
	if err := newAPIClient().Logout(ctx); err != nil {
		// The local cookie is dropped regardless.
		logger.Warn("server logout failed", "error", err)
	}
	if err := store.Remove(cfg.ServerURL); err != nil {
		return fmt.Errorf("failed to forget login: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged out of %s.\n", cfg.ServerURL)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()

	st, err := newAPIClient().CheckAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to check login: %w", err)
	}
	out := cmd.OutOrStdout()
	if !st.Authenticated {
		fmt.Fprintf(out, "Not logged in to %s.\n", cfg.ServerURL)
		fmt.Fprintln(out, "Use 'questline auth login' to log in.")
		return nil
	}
	fmt.Fprintf(out, "Logged in to %s as %s.\n", cfg.ServerURL, st.Username)
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	store, err := getAuthStore()
	if err != nil {
		return fmt.Errorf("failed to open auth store: %w", err)
	}

	out := cmd.OutOrStdout()
	servers := store.Servers()
	if len(servers) == 0 {
		fmt.Fprintln(out, "No stored logins.")
		return nil
	}

	t := &table{Headers: []string{"Server", "User", "Saved"}}
	for _, s := range servers {
		cred, err := store.Get(s)
		if err != nil {
			continue
		}
		t.Rows = append(t.Rows, []string{s, cred.Username, cred.SavedAt.Local().Format("2006-01-02 15:04")})
	}
	fmt.Fprintln(out, renderTable(terminalWidth(), t))
	return nil
}
