package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Angel-Nizama/web-operaciones-v2/internal/utils"
	"github.com/Angel-Nizama/web-operaciones-v2/pkg/apiclient"
	"github.com/Angel-Nizama/web-operaciones-v2/pkg/matching"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "opsconsole",
	Short: "Operations console for affiliate transfers and pairing.",
	Long: `opsconsole talks to the operations service: browse and upload operation history,
manage the affiliate registry, register affiliates in amount ranges and calculate
affiliate pairings. Calculations are archived locally so they can be filtered and
sorted offline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.opsconsole.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("api-url", apiclient.DefaultBaseURL, "Base URL of the operations service")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json")

	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", apiclient.DefaultBaseURL)
	v.SetDefault("api.timeout", apiclient.DefaultTimeout)
	v.SetDefault("throttle.window", apiclient.DefaultThrottleWindow)

	retry := apiclient.DefaultRetryPolicy()
	v.SetDefault("retry.max", retry.MaxRetries)
	v.SetDefault("retry.initial_delay", retry.InitialDelay)
	v.SetDefault("retry.max_delay", retry.MaxDelay)
	v.SetDefault("retry.unsafe_verbs", retry.RetryUnsafeVerbs)

	scoring := matching.DefaultConfiguration()
	v.SetDefault("scoring.dias_minimos", scoring.MinimumDays)
	v.SetDefault("scoring.riesgo_maximo", scoring.MaximumRisk)
	v.SetDefault("scoring.monto_minimo", scoring.MinimumAmount)
	v.SetDefault("scoring.monto_maximo", scoring.MaximumAmount)
	v.SetDefault("scoring.ponderaciones.dias", scoring.Weights.Days)
	v.SetDefault("scoring.ponderaciones.diversidad", scoring.Weights.Diversity)
	v.SetDefault("scoring.ponderaciones.operaciones", scoring.Weights.OperationCount)
	v.SetDefault("scoring.ponderaciones.patron", scoring.Weights.Pattern)
	v.SetDefault("scoring.normalize_weights", false)
	v.SetDefault("scoring.limit", 0)

	v.SetDefault("storage.dbpath", "")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".opsconsole")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("OPSCONSOLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.opsconsole.yaml"
			if err := writeDefaultConfig(configPath); err != nil {
				utils.Log.Debugf("Could not create config file: %s", err)
			}
		} else {
			utils.Log.Warnf("Could not read config file: %v", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// writeDefaultConfig creates path with the built-in defaults only. Flags and
// environment values of the current run are not persisted.
func writeDefaultConfig(path string) error {
	v := viper.New()
	setDefaults(v)
	return v.SafeWriteConfigAs(path)
}

func newClient() *apiclient.Client {
	policy := apiclient.RetryPolicy{
		MaxRetries:       viper.GetInt("retry.max"),
		InitialDelay:     durationOr(viper.GetDuration("retry.initial_delay"), apiclient.DefaultInitialDelay),
		MaxDelay:         durationOr(viper.GetDuration("retry.max_delay"), apiclient.DefaultMaxDelay),
		RetryUnsafeVerbs: viper.GetBool("retry.unsafe_verbs"),
	}
	return apiclient.New(viper.GetString("api.url"),
		apiclient.WithTimeout(durationOr(viper.GetDuration("api.timeout"), apiclient.DefaultTimeout)),
		apiclient.WithThrottleWindow(viper.GetDuration("throttle.window")),
		apiclient.WithRetryPolicy(policy),
		apiclient.WithLogger(utils.Log),
	)
}

// scoringFromConfig reads the scoring section key by key so environment
// overrides apply to nested keys too.
func scoringFromConfig() matching.ScoringConfiguration {
	return matching.ScoringConfiguration{
		MinimumDays:   viper.GetInt("scoring.dias_minimos"),
		MaximumRisk:   viper.GetFloat64("scoring.riesgo_maximo"),
		MinimumAmount: viper.GetFloat64("scoring.monto_minimo"),
		MaximumAmount: viper.GetFloat64("scoring.monto_maximo"),
		Weights: matching.Weights{
			Days:           viper.GetFloat64("scoring.ponderaciones.dias"),
			Diversity:      viper.GetFloat64("scoring.ponderaciones.diversidad"),
			OperationCount: viper.GetFloat64("scoring.ponderaciones.operaciones"),
			Pattern:        viper.GetFloat64("scoring.ponderaciones.patron"),
		},
	}
}

func newManager(cfg matching.ScoringConfiguration) (*matching.Manager, error) {
	var opts []matching.ManagerOption
	if viper.GetBool("scoring.normalize_weights") {
		opts = append(opts, matching.WithWeightNormalization())
	}
	return matching.NewManager(cfg, opts...)
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
