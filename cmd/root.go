package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/chronosync/go-chronosync/config"
	"github.com/chronosync/go-chronosync/config/presets"
)

// AddCommands adds the persistent flags shared by all subcommands and binds
// each of them to its config key in vip.
func AddCommands(cmd *cobra.Command, vip *viper.Viper) {
	defaults := config.DefaultConfig()
	flags := cmd.PersistentFlags()

	/** ======================== Base Flags ========================== **/
	flags.StringP("config", "c", "", "Load configuration from file")
	flags.StringP("preset", "p", "",
		fmt.Sprintf("preset overwrites default values of the config. options %+s", presets.Options()))

	/** ======================== Sync Flags ========================== **/
	flags.String("prefix", defaults.Sync.Prefix, "sync prefix the replica publishes requests under")
	flags.String("digest-algorithm", defaults.Sync.DigestAlgorithm, "digest algorithm: sha256 or blake3")
	flags.String("seq-order", defaults.Sync.SeqOrder, "sequence number order: session-then-seq or same-session")
	flags.String("name-policy", defaults.Sync.NamePolicy, "name registry policy: keep-forever or evict-unreferenced")
	flags.Int("diff-log-size", defaults.Sync.DiffLogSize, "number of recent diffs kept for lagging requesters")

	/** ======================== Interests Flags ========================== **/
	flags.Duration("interest-lifetime", defaults.Interests.Lifetime, "how long a pending sync request is kept")
	flags.Duration("check-period", defaults.Interests.CheckPeriod, "interval between expiry sweeps")

	/** ======================== Logging Flags ========================== **/
	flags.String("log-encoder", defaults.Logging.Encoder, "log encoder: console or json")
	flags.String("log-level", defaults.Logging.AppLoggerLevel, "log level of the application logger")

	/** ======================== Metrics Flags ========================== **/
	flags.String("metrics-listen", defaults.Metrics.Listen, "serve /metrics on this address")
	flags.String("metrics-push", defaults.Metrics.PushURL, "push metrics to this url")
	flags.Duration("metrics-push-period", defaults.Metrics.PushPeriod, "push period")

	bindFlags(vip, flags, map[string]string{
		"config":              "main.config",
		"preset":              "main.preset",
		"prefix":              "sync.prefix",
		"digest-algorithm":    "sync.digest-algorithm",
		"seq-order":           "sync.seq-order",
		"name-policy":         "sync.name-policy",
		"diff-log-size":       "sync.diff-log-size",
		"interest-lifetime":   "interests.lifetime",
		"check-period":        "interests.check-period",
		"log-encoder":         "logging.log-encoder",
		"log-level":           "logging.app",
		"metrics-listen":      "metrics.listen",
		"metrics-push":        "metrics.push-url",
		"metrics-push-period": "metrics.push-period",
	})
}

func bindFlags(vip *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := vip.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}
