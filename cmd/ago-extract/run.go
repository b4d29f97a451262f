package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/ago-extract/pkg/auth"
	"github.com/Sternrassler/ago-extract/pkg/client"
	"github.com/Sternrassler/ago-extract/pkg/logging"
	"github.com/Sternrassler/ago-extract/pkg/metrics"
	"github.com/Sternrassler/ago-extract/pkg/pagination"
	"github.com/Sternrassler/ago-extract/pkg/tokencache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "ago-extract",
		Short: "Download an ArcGIS Online Feature Server layer to CSV",
		Long: "Download every record of an ArcGIS Online Feature Server layer to a CSV file.\n\n" +
			"To pull a different layer, pass --url together with --filename, and name the\n" +
			"esriFieldTypeDate columns to convert with --date-col.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd.Flags().Changed("date-col"))
			if err != nil {
				return err
			}
			return runExtract(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	opts.bind(cmd)
	return cmd
}

// runExtract authenticates, pulls every page into cfg.Destination, and
// prints the completion message to stdout.
func runExtract(ctx context.Context, cfg *runConfig, stdout, stderr io.Writer) (err error) {
	cfg.Logging.Output = stderr
	logger := logging.Setup(cfg.Logging).With().Str("component", "cli").Logger()

	if cfg.MetricsFile != "" {
		defer func() {
			if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
				logger.Error().Err(werr).Str("path", cfg.MetricsFile).Msg("Failed to write metrics")
			}
		}()
	}

	if cfg.Credential.Username == "" {
		return fmt.Errorf("%w: --username or AGO_USERNAME is required", auth.ErrMissingCredential)
	}
	if cfg.Credential.Password == "" {
		pw, perr := promptPassword(stderr, cfg.Credential.Username)
		if perr != nil {
			return perr
		}
		cfg.Credential.Password = pw
	}

	agoClient, err := client.New(cfg.Client)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if cfg.RedisAddr != "" {
		redisClient, rerr := connectRedis(ctx, cfg.RedisAddr)
		if rerr != nil {
			logger.Warn().Err(rerr).Str("addr", cfg.RedisAddr).Msg("Token cache unavailable, continuing without it")
		} else {
			defer redisClient.Close()
			cfg.Auth.Store = tokencache.NewManager(redisClient)
			logger.Debug().Str("addr", cfg.RedisAddr).Msg("Token cache enabled")
		}
	}

	authenticator, err := auth.New(agoClient, cfg.Auth)
	if err != nil {
		return err
	}

	token, err := authenticator.GenerateToken(ctx, cfg.Credential)
	if err != nil {
		return err
	}

	query := agoClient.NewFeatureQuery(cfg.URL, token.Value)
	query.Format = cfg.Format

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = newProgressBar(stderr)
		cfg.Pagination.OnPage = func(s pagination.PageStats) {
			bar.Add(s.Records)
		}
	}

	result, err := pagination.Pull(ctx, query, cfg.Destination, cfg.Pagination)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		logger.Error().
			Err(err).
			Int("records_written", result.Records).
			Int64("cursor", result.Cursor).
			Msg("Pull failed")
		if client.IsTokenRejected(err) {
			if ierr := authenticator.Invalidate(context.WithoutCancel(ctx), cfg.Credential); ierr != nil {
				logger.Warn().Err(ierr).Msg("Failed to evict rejected token")
			}
		}
		return err
	}

	logSummary(logger, result)
	fmt.Fprintf(stdout, "Script completed - file saved to %s\n", cfg.Destination)
	return nil
}

func connectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	redisClient := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	return redisClient, nil
}

// promptPassword reads the password from the terminal without echo.
func promptPassword(stderr io.Writer, username string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: password not set and stdin is not a terminal", auth.ErrMissingCredential)
	}

	fmt.Fprintf(stderr, "Password for %s: ", username)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(string(pw), "\r\n"), nil
}

func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Gathering records"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

func logSummary(logger zerolog.Logger, result *pagination.Result) {
	event := logger.Info().
		Int("pages", result.Pages).
		Int("records", result.Records).
		Int64("cursor", result.Cursor)
	if n := len(result.Warnings); n > 0 {
		event = event.Int("date_warnings", n)
	}
	event.Msg("Pull finished")
}
