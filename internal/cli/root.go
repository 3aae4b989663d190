package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andreyvit/ordkv"
)

const Version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "ordkv",
		Short: "Inspect and edit ordkv stores",
		Long: `ordkv (v` + Version + `)

Reads and writes the ordered byte stores behind ordkv tables: raw records,
bulk erases, maintenance and the descriptor registry.`,
		SilenceUsage:       true,
		PersistentPostRunE: printMetrics,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ordkv v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	setupStoreFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(rawCommands)
	rootCmd.AddCommand(registryCommands)
}

func printMetrics(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("metrics") {
		ordkv.WriteMetrics(cmd.OutOrStdout())
	}
	return nil
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}

func execute() error {
	defer closeStores()
	return rootCmd.Execute()
}

// closeStores closes whatever a failed command left open; cobra skips the
// post-run hooks when RunE fails.
func closeStores() {
	if rawTable != nil {
		if err := rawTable.Close(); err != nil {
			slog.Warn("ordkv: closing raw table failed", "err", err)
		}
		rawTable = nil
	}
	if registry != nil {
		if err := registry.Close(); err != nil {
			slog.Warn("ordkv: closing registry failed", "err", err)
		}
		registry = nil
	}
}
