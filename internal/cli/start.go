package cli

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/allyourbase/phoneverify/internal/cli/ui"
	"github.com/allyourbase/phoneverify/internal/config"
	"github.com/allyourbase/phoneverify/internal/server"
	"github.com/allyourbase/phoneverify/internal/sms"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the phoneverify server",
		Long: `Start the HTTP server and the expired-code sweeper. Runs in the
foreground until interrupted.

Local development (no gateway credentials, codes returned in responses):
  phoneverify start --sms-provider test

Production with automatic HTTPS:
  phoneverify start --domain verify.example.com`,
		Args: cobra.NoArgs,
		RunE: runStart,
	}
	cmd.Flags().Int("port", 0, "Server port (default 8090)")
	cmd.Flags().String("host", "", "Server host (default 0.0.0.0)")
	cmd.Flags().String("config", "", "Path to phoneverify.toml")
	cmd.Flags().String("domain", "", "Domain for automatic HTTPS via Let's Encrypt")
	cmd.Flags().String("sms-provider", "", "SMS provider: auto, test, regional, international, sns")
	cmd.Flags().String("env-file", ".env", "Load environment variables from this file if it exists")
	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := loadDotEnv(envFile); err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, changedFlags(cmd.Flags(), "port", "host", "domain", "sms-provider"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	isTTY := ui.ColorEnabled()
	logger, level := newLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if isTTY {
		// Progress lines replace INFO logs until the server is up.
		level.Set(slog.LevelWarn)
	}
	sp := ui.NewStepSpinner(os.Stderr, !isTTY)
	if isTTY {
		printHeader(os.Stderr, true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var a *app
	if err := sp.Step("Wiring providers and stores...", func() error {
		var err error
		a, err = buildApp(ctx, cfg, logger)
		return err
	}); err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(cfg, logger, a.deps())

	var ln net.Listener
	if cfg.Server.TLSDomain != "" {
		err = sp.Step("Obtaining TLS certificate...", func() error {
			var err error
			ln, err = buildTLSListener(ctx, cfg, logger)
			return err
		})
	} else {
		ln, err = net.Listen("tcp", cfg.Address())
		if err != nil {
			err = portError(cfg.Server.Port, err)
		}
	}
	if err != nil {
		return err
	}

	if isTTY {
		level.Set(parseSlogLevel(cfg.Logging.Level))
		printBannerBody(os.Stderr, cfg, a, true)
	} else {
		printHeader(os.Stderr, false)
		printBannerBody(os.Stderr, cfg, a, false)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ln) })
	g.Go(func() error { return a.sweeper.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return srv.Shutdown(context.Background())
	})
	return g.Wait()
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// newLogger builds the process logger. The returned LevelVar lets start
// quiet INFO output while the progress spinner is shown.
func newLogger(level, format string, w io.Writer) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(parseSlogLevel(level))
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h), lvl
}

func parseSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildTLSListener obtains a Let's Encrypt certificate for the configured
// domain and listens on :443. Port 80 answers HTTP-01 challenges and
// redirects everything else to https.
func buildTLSListener(ctx context.Context, cfg *config.Config, logger *slog.Logger) (net.Listener, error) {
	if cfg.Server.TLSEmail != "" {
		certmagic.DefaultACME.Email = cfg.Server.TLSEmail
	}
	magic := certmagic.NewDefault()
	magic.Storage = &certmagic.FileStorage{Path: cfg.Server.TLSDataDir}

	logger.Info("obtaining TLS certificate", "domain", cfg.Server.TLSDomain)
	if err := magic.ManageSync(ctx, []string{cfg.Server.TLSDomain}); err != nil {
		return nil, fmt.Errorf("obtaining TLS certificate for %s: %w", cfg.Server.TLSDomain, err)
	}

	go func() {
		domain := cfg.Server.TLSDomain
		redirect := certmagic.DefaultACME.HTTPChallengeHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "https://"+domain+r.RequestURI, http.StatusMovedPermanently)
		}))
		srv := &http.Server{
			Addr:              ":80",
			Handler:           redirect,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			logger.Warn("HTTP redirect listener error", "error", err)
		}
	}()

	ln, err := tls.Listen("tcp", net.JoinHostPort(cfg.Server.Host, "443"), magic.TLSConfig())
	if err != nil {
		return nil, fmt.Errorf("TLS listen on :443: %w", err)
	}
	return ln, nil
}

// portError rewrites "address already in use" into an actionable message.
func portError(port int, err error) error {
	if strings.Contains(err.Error(), "address already in use") {
		return fmt.Errorf("port %d is already in use; try: phoneverify start --port %d", port, port+1)
	}
	return err
}

func printHeader(w io.Writer, color bool) {
	title := ui.Paint(fmt.Sprintf("phoneverify v%s", bannerVersion(buildVersion)), color,
		func(s lipgloss.Style) lipgloss.Style { return s.Bold(true).Foreground(ui.ColorCyan) })
	fmt.Fprintf(w, "\n  %s %s\n", ui.BrandEmoji, title)
}

// printBannerBody writes the startup summary: URLs, active providers and
// backends, and a first request to try.
func printBannerBody(w io.Writer, cfg *config.Config, a *app, color bool) {
	label := func(s string) string {
		return ui.Paint(fmt.Sprintf("%-10s", s), color, func(st lipgloss.Style) lipgloss.Style { return st.Bold(true) })
	}
	hint := func(s string) string {
		return ui.Paint(s, color, func(st lipgloss.Style) lipgloss.Style { return st.Faint(true) })
	}
	code := func(s string) string {
		return ui.Paint(s, color, func(st lipgloss.Style) lipgloss.Style { return st.Foreground(ui.ColorGreen) })
	}

	base := baseURL(cfg)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", label("API:"), base+"/phone")
	if a != nil && a.registry != nil {
		fmt.Fprintf(w, "  %s %s\n", label("Metrics:"), base+"/metrics")
	}
	fmt.Fprintf(w, "  %s %s\n", label("SMS:"), cfg.SMS.Provider)
	fmt.Fprintf(w, "  %s %s\n", label("Store:"), cfg.Verification.Store)
	fmt.Fprintf(w, "  %s %s (%d/hour, %d/day)\n", label("Limits:"), cfg.RateLimit.Backend, cfg.RateLimit.Hourly, cfg.RateLimit.Daily)

	if cfg.SMS.Provider == sms.ProviderTest {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", ui.Paint(ui.SymbolWarning+" test SMS channel: codes are returned in API responses, not delivered", color,
			func(st lipgloss.Style) lipgloss.Style { return st.Foreground(ui.ColorYellow) }))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", hint("Try:"))
	fmt.Fprintf(w, "%s\n", code(fmt.Sprintf(`curl -X POST %s/phone/send-verification -H 'Content-Type: application/json' -d '{"phone":"+998901234567"}'`, base)))
	fmt.Fprintln(w)
}

func baseURL(cfg *config.Config) string {
	if cfg.Server.TLSDomain != "" {
		return "https://" + cfg.Server.TLSDomain
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprint(cfg.Server.Port)))
}

// bannerVersion trims a git-describe version for the banner.
// "v0.1.0" → "0.1.0", "v0.1.0-43-ge534c04-dirty" → "0.1.0-dev",
// "v0.1.0-beta.1" → "0.1.0-beta.1".
func bannerVersion(raw string) string {
	v := strings.TrimPrefix(raw, "v")
	base, rest, found := strings.Cut(v, "-")
	if !found {
		return v
	}
	if rest != "" && rest[0] >= '0' && rest[0] <= '9' {
		return base + "-dev"
	}
	return v
}
