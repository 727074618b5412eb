package cmd

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/samsaffron/vibe-llm/internal/clipboard"
	"github.com/samsaffron/vibe-llm/internal/logging"
	"github.com/samsaffron/vibe-llm/internal/serve"
	"github.com/samsaffron/vibe-llm/internal/signal"
)

var (
	serveHost        string
	servePort        int
	serveToken       string
	serveGenToken    bool
	serveOpenBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web front-end",
	Long: `Serve the chat, code view and sandboxed live preview in the browser.

Examples:
  vibe-llm serve
  vibe-llm serve --port 9000 --open
  vibe-llm serve --host 0.0.0.0 --generate-token`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (default from config, 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (default from config, 8787)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Bearer token for the API")
	serveCmd.Flags().BoolVar(&serveGenToken, "generate-token", false, "Generate a random bearer token")
	serveCmd.Flags().BoolVar(&serveOpenBrowser, "open", false, "Open the UI in a browser")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	cfg, closer, err := setup("")
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Serve.Host = serveHost
	}
	if servePort != 0 {
		cfg.Serve.Port = servePort
	}
	if serveToken != "" {
		cfg.Serve.Token = strings.TrimSpace(serveToken)
	}
	if cfg.Serve.Port <= 0 || cfg.Serve.Port > 65535 {
		closer.Close()
		return fmt.Errorf("invalid port %d (must be 1-65535)", cfg.Serve.Port)
	}
	if serveGenToken && cfg.Serve.Token == "" {
		token, err := generateServeToken()
		if err != nil {
			closer.Close()
			return fmt.Errorf("generate auth token: %w", err)
		}
		cfg.Serve.Token = token
	}
	if cfg.Serve.Token == "" && !isLoopbackHost(cfg.Serve.Host) {
		closer.Close()
		return fmt.Errorf("refusing to serve on %q without a token (use --token or --generate-token)", cfg.Serve.Host)
	}

	a, err := newApp(cfg, closer, nil)
	if err != nil {
		closer.Close()
		return err
	}
	defer a.Close()

	srv, err := serve.New(serve.Options{
		Host:    cfg.Serve.Host,
		Port:    cfg.Serve.Port,
		Token:   cfg.Serve.Token,
		Studio:  a.studio,
		Store:   a.searchStore(),
		Copier:  clipboard.NewSystemCopier(nil),
		Speaker: a.speaker,
		Logger:  logging.Component("serve"),
	})
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	url := "http://" + srv.Addr() + "/"
	if cfg.Serve.Token != "" {
		url += "?token=" + cfg.Serve.Token
	}
	fmt.Fprintf(cmd.OutOrStdout(), "vibe-llm %s serving %s (provider %s)\n", Version, url, a.studio.ProviderName())
	if serveOpenBrowser {
		if err := openInBrowser(url); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", err)
		}
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func isLoopbackHost(host string) bool {
	h := strings.TrimSpace(strings.ToLower(host))
	return h == "127.0.0.1" || h == "localhost" || h == "::1"
}

func generateServeToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
