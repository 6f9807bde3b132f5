package main

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arthur-debert/casedb/casedb/remote"
	"github.com/arthur-debert/casedb/filter"
)

// Configuration keys
const (
	keyCaseURL   = "api.case_url"
	keyTimeout   = "api.timeout"
	keyRateLimit = "api.rate_limit"
	keyBurst     = "api.burst"
	keyFixture   = "api.fixture"
	keyAuthType  = "auth.type"
	keyAuthKey   = "auth.key"
	keyListen    = "server.listen"
	keyLogLevel  = "log.level"
	keyLogStdout = "log.stdout"
)

// CLI is the casedb command line
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper
}

// NewCLI creates the command tree
func NewCLI() *CLI {
	cli := &CLI{viperInst: viper.New()}
	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()
	return cli
}

// Execute runs the CLI
func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

// setupViperConfig configures Viper with environment variables and config files
func (cli *CLI) setupViperConfig() {
	v := cli.viperInst

	// CASEDB_CONFIG overrides config file discovery
	if configFile := os.Getenv("CASEDB_CONFIG"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("casedb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.casedb")
		v.AddConfigPath("/etc/casedb")
	}

	// api.case_url -> CASEDB_API_CASE_URL
	v.SetEnvPrefix("CASEDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyTimeout, remote.DefaultTimeout)
	v.SetDefault(keyBurst, 1)
	v.SetDefault(keyListen, ":8080")
	v.SetDefault(keyLogLevel, "warn")
	v.SetDefault(keyAuthType, string(remote.AuthNone))

	// Read config file if it exists (ignore errors)
	_ = v.ReadInConfig()
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "casedb",
		Short: "Case filter service backed by the remote case API",
		Long: `casedb loads cases from the remote case API into an indexed store and
evaluates case filter expressions against it.

Configuration Sources (in order of precedence):
1. Command line flags
2. Environment variables (CASEDB_*, e.g. CASEDB_API_CASE_URL)
3. Configuration file (CASEDB_CONFIG, ./casedb.yaml, ~/.casedb/casedb.yaml, /etc/casedb/casedb.yaml)

Examples:
  # Filter cases of a domain
  casedb filter --case-url 'https://hq.example.org/a/{{DOMAIN}}/api/v0.5/case/' \
    --domain demo --username demo-user --auth-type cookie --auth-key $SESSION "[@case_type='patient']"

  # Replay a fixture instead of calling the API
  casedb cases --fixture cases.yaml --domain demo --format yaml

  # Serve filter requests over HTTP
  casedb serve --listen :8080`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var stdout io.Writer
			if cli.viperInst.GetBool(keyLogStdout) {
				stdout = cmd.ErrOrStderr()
			}
			return initLogging(cli.viperInst.GetString(keyLogLevel), stdout)
		},
	}

	flags := cli.rootCmd.PersistentFlags()
	flags.String("case-url", "", "case API endpoint template; {{DOMAIN}} is replaced by the domain")
	flags.String("fixture", "", "read cases from a YAML/JSON fixture file instead of the API")
	flags.Duration("timeout", remote.DefaultTimeout, "case API request timeout")
	flags.Float64("rate-limit", 0, "maximum case API requests per second (0 = unlimited)")
	flags.Int("burst", 1, "case API request burst size")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Bool("log-stdout", false, "also write logs to stderr")

	cli.bind(flags, map[string]string{
		keyCaseURL:   "case-url",
		keyFixture:   "fixture",
		keyTimeout:   "timeout",
		keyRateLimit: "rate-limit",
		keyBurst:     "burst",
		keyLogLevel:  "log-level",
		keyLogStdout: "log-stdout",
	})
}

func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.newServeCommand(),
		cli.newFilterCommand(),
		cli.newCasesCommand(),
	)
}

// bind ties configuration keys to flags
func (cli *CLI) bind(flags *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		_ = cli.viperInst.BindPFlag(key, flags.Lookup(flag))
	}
}

// newSource builds the case source from configuration
func (cli *CLI) newSource() (remote.Source, error) {
	v := cli.viperInst

	if fixture := v.GetString(keyFixture); fixture != "" {
		return remote.NewFileSource(fixture, queriesLogger), nil
	}

	caseURL := v.GetString(keyCaseURL)
	if caseURL == "" {
		return nil, NewConfigError("configure the case API", "no case API URL",
			"Pass --case-url or set CASEDB_API_CASE_URL",
			"Use --fixture to replay cases from a file",
			CommonSuggestions.CheckConfig)
	}

	timeout := v.GetDuration(keyTimeout)
	if timeout <= 0 {
		timeout = remote.DefaultTimeout
	}
	return remote.NewHTTPSource(caseURL,
		remote.WithTimeout(timeout),
		remote.WithRateLimit(v.GetFloat64(keyRateLimit), v.GetInt(keyBurst)),
		remote.WithLogger(queriesLogger),
	), nil
}

func (cli *CLI) newPipeline() (*filter.Pipeline, error) {
	source, err := cli.newSource()
	if err != nil {
		return nil, err
	}
	return filter.NewPipeline(source, filter.WithLogger(mainLogger)), nil
}

// sessionFlags holds the flags describing the caller of filter and cases
type sessionFlags struct {
	domain   string
	username string
	userID   string
	criteria map[string]string
	vars     map[string]string
}

func (s *sessionFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&s.domain, "domain", "", "domain to read cases from (required)")
	flags.StringVar(&s.username, "username", "", "acting username")
	flags.StringVar(&s.userID, "user-id", "", "acting user id")
	flags.StringToStringVar(&s.criteria, "criteria", nil, "additional server-side filters, e.g. --criteria owner_id=abc")
	flags.StringToStringVar(&s.vars, "var", nil, "session variables available as instance('session')/session/data/<name>")
	_ = cmd.MarkFlagRequired("domain")

	flags.String("auth-type", string(remote.AuthNone), "API auth scheme (none, cookie, django-session, oauth, http)")
	flags.String("auth-key", "", "API auth key, e.g. the session cookie value")
}

func (s *sessionFlags) session() filter.Session {
	return filter.Session{
		Domain:            s.domain,
		Username:          s.username,
		UserID:            s.userID,
		AdditionalFilters: s.criteria,
		Extra:             s.vars,
	}
}

// bindAuth ties the auth flags of cmd to configuration. Commands sharing the
// keys bind when they run.
func (cli *CLI) bindAuth(cmd *cobra.Command) {
	cli.bind(cmd.Flags(), map[string]string{
		keyAuthType: "auth-type",
		keyAuthKey:  "auth-key",
	})
}

func (cli *CLI) auth() remote.Auth {
	return remote.Auth{
		Type: remote.AuthType(cli.viperInst.GetString(keyAuthType)),
		Key:  cli.viperInst.GetString(keyAuthKey),
	}
}
