// Signs in once in the browser and saves the session to .testdata/ for the
// live tests in e2e/.
//
// Usage: EXPEDIENTES_CLIENT_ID=... go run ./cmd/integration-bootstrap
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/tonimelisma/expedientes-go/internal/config"
	"github.com/tonimelisma/expedientes-go/internal/gapi"
	"github.com/tonimelisma/expedientes-go/internal/tokenfile"
	"github.com/tonimelisma/expedientes-go/testutil"
)

func main() {
	out := flag.String("out", "", "token file path (default .testdata/token.json)")
	flag.Parse()

	root := testutil.FindModuleRoot(".")
	testutil.LoadDotEnv(filepath.Join(root, ".env"))

	path := *out
	if path == "" {
		path = filepath.Join(root, ".testdata", testutil.TokenFileName)
	}

	env := config.ReadEnvOverrides()
	if env.ClientID == "" {
		fmt.Fprintf(os.Stderr, "%s not set\n", config.EnvClientID)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := slog.Default()

	provider := gapi.NewBrowserProvider(gapi.OAuthConfig(env.ClientID, env.ClientSecret), func(url string) error {
		fmt.Printf("Open this URL to sign in:\n%s\n", url)
		return nil
	}, logger)

	tok, err := provider.AcquireToken(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	if err := tokenfile.Save(path, &tokenfile.File{Token: tok}); err != nil {
		fmt.Fprintf(os.Stderr, "saving token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Login successful. Token saved to %s.\n", path)
}
