package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/expedientes-go/internal/config"
	"github.com/tonimelisma/expedientes-go/internal/expediente"
	"github.com/tonimelisma/expedientes-go/internal/gapi"
	"github.com/tonimelisma/expedientes-go/internal/tokenfile"
)

// tokenAcquirer obtains a fresh token from the user.
type tokenAcquirer interface {
	AcquireToken(ctx context.Context) (*oauth2.Token, error)
}

// newLoginProvider builds the interactive provider used by login. Tests
// replace it to skip the browser.
var newLoginProvider = func(cfg *oauth2.Config, opener func(string) error, logger *slog.Logger) tokenAcquirer {
	return gapi.NewBrowserProvider(cfg, opener, logger)
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google in the browser",
		Long: `Sign in with Google. Opens the consent page in the browser and waits for
the redirect on a local port. Grants access to files created by this tool
and to spreadsheets.`,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Long:  "Delete the saved token and profile. The token is not revoked with Google.",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	logger := cc.Logger

	if cc.Cfg.Google.ClientID == "" {
		return fmt.Errorf("no OAuth client configured: set client_id or %s", config.EnvClientID)
	}

	tokenPath := config.DefaultTokenPath()
	if tokenPath == "" {
		return fmt.Errorf("cannot determine token path")
	}

	logger.Info("login started")

	provider := newLoginProvider(oauthConfig(cc.Cfg), func(url string) error {
		cc.Statusf("Opening the browser to sign in.\n")

		return openURL(url)
	}, logger)

	tok, err := provider.AcquireToken(ctx)
	if err != nil {
		return err
	}

	sess := expediente.NewSession(logger)
	sess.SignIn(tok, gapi.Profile{})

	client, err := newAPIClient(cc.Cfg, sess, logger)
	if err != nil {
		return err
	}

	// The token is kept even when the profile cannot be fetched.
	profile, err := client.UserInfo(ctx)
	if err != nil {
		logger.Warn("fetching user profile failed, signing in without it",
			slog.String("error", err.Error()),
		)

		profile = &gapi.Profile{}
	}

	sess.SetProfile(*profile)

	tf := &tokenfile.File{
		Token:   sess.OAuthToken(),
		Profile: tokenfile.Profile{Email: profile.Email, Name: profile.Name},
	}

	if err := tokenfile.Save(tokenPath, tf); err != nil {
		return err
	}

	logger.Info("login successful", slog.String("email", profile.Email))
	cc.Statusf("Signed in as %s.\n", profileLabel(profile.Name, profile.Email))

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	tokenPath := config.DefaultTokenPath()

	removed, err := tokenfile.Remove(tokenPath)
	if err != nil {
		return err
	}

	if !removed {
		cc.Statusf("Not logged in.\n")
		return nil
	}

	logger.Info("logout successful", slog.String("path", tokenPath))
	cc.Statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Expires string `json:"expires"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	tf, err := tokenfile.Load(config.DefaultTokenPath())
	if err != nil {
		return err
	}

	if tf == nil {
		return errNotLoggedIn
	}

	out := whoamiOutput{
		Email:   tf.Profile.Email,
		Name:    tf.Profile.Name,
		Expires: tokenExpiry(tf.Token),
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "User:    %s\n", profileLabel(out.Name, out.Email))
	fmt.Fprintf(w, "Expires: %s\n", out.Expires)

	return nil
}

// profileLabel renders "Name <email>", or whichever part is known.
func profileLabel(name, email string) string {
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case email != "":
		return email
	case name != "":
		return name
	default:
		return "(unknown user)"
	}
}

// openURL is the browser launcher. Tests replace it.
var openURL = openBrowser

// openBrowser opens url with the platform's default handler.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
