package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aegis-sim/aegis-sim/pkg/logger"
)

var (
	cfgFile  string
	envName  string
	dsnFlag  string
	logLevel string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "aegis-cli",
	Short: "Aegis missile-defense simulation CLI",
	Long: `aegis-cli runs and inspects the Aegis missile-defense simulation:
a fixed-tick physics engine, a radar detection subsystem, a command
center that correlates threats and dispatches engagements, and a
battery controller state machine, coordinated over PostGIS.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "simulation config file (default: aegis-sim.yaml)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "named database environment to use")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "database DSN (overrides environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	logger.SetLevel(logger.ParseLevel(logLevel))
	logger.SetNoColor(noColor)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("aegis-sim")
	}

	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}
