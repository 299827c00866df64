package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind         string
	port         int
	publicURL    string
	staticDir    string
	dbPath       string
	jwtSecret    string
	jwtExpiry    time.Duration
	sessionGrace time.Duration
	ngrokEnabled bool
	ngrokAuth    string
	ngrokDomain  string
	verbose      bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.jwtSecret == "" {
		return fmt.Errorf("a jwt secret is required (--jwt-secret or PUZZLEPARTY_JWT_SECRET)")
	}
	if c.sessionGrace <= 0 {
		return fmt.Errorf("session grace must be positive: %s", c.sessionGrace)
	}
	return nil
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PUZZLEPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "puzzleparty",
		Short:         "A collaborative jigsaw puzzle server for parties.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PUZZLEPARTY_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PUZZLEPARTY_PORT)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "externally reachable base URL, encoded into the QR code (env: PUZZLEPARTY_PUBLIC_URL)")
	fs.StringVar(&cfg.staticDir, "static-dir", "static", "directory of browser client assets, empty to disable (env: PUZZLEPARTY_STATIC_DIR)")
	fs.StringVar(&cfg.dbPath, "db-path", "puzzleparty.db", "path to the account database (env: PUZZLEPARTY_DB_PATH)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "secret used to sign bearer tokens (env: PUZZLEPARTY_JWT_SECRET)")
	fs.DurationVar(&cfg.jwtExpiry, "jwt-expiry", 24*time.Hour, "bearer token lifetime (env: PUZZLEPARTY_JWT_EXPIRY)")
	fs.DurationVar(&cfg.sessionGrace, "session-grace", 10*time.Minute, "time before empty puzzle sessions are removed (env: PUZZLEPARTY_SESSION_GRACE)")
	fs.BoolVar(&cfg.ngrokEnabled, "ngrok", false, "expose the server through an ngrok tunnel (env: PUZZLEPARTY_NGROK)")
	fs.StringVar(&cfg.ngrokAuth, "ngrok-auth", "", "ngrok auth token (env: PUZZLEPARTY_NGROK_AUTH or NGROK_AUTHTOKEN)")
	fs.StringVar(&cfg.ngrokDomain, "ngrok-domain", "", "custom ngrok domain (env: PUZZLEPARTY_NGROK_DOMAIN)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging (env: PUZZLEPARTY_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("puzzleparty v{{.Version}}\n")

	cmd.SilenceUsage = true

	return cmd
}
