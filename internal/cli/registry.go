package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/andreyvit/ordkv"
)

var (
	registry *ordkv.Registry

	registryCommands = &cobra.Command{
		Use:                "registry",
		Short:              "Inspect a descriptor registry",
		PersistentPreRunE:  openRegistry,
		PersistentPostRunE: closeRegistry,
	}

	registryListCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the recorded value descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, d := range registry.All() {
				fmt.Fprintln(cmd.OutOrStdout(), d.String())
			}
			return nil
		},
	}
	registryLookupCmd = &cobra.Command{
		Use:   "lookup [hash]",
		Short: "Prints the descriptor with the given hex layout hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := strconv.ParseUint(args[0], 16, 64)
			if err != nil {
				return fmt.Errorf("hash must be a hex number: %w", err)
			}
			d, ok := registry.Lookup(hash)
			if !ok {
				return fmt.Errorf("layout %016x not registered", hash)
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.String())
			return nil
		},
	}
)

func init() {
	registryCommands.AddCommand(registryListCmd)
	registryCommands.AddCommand(registryLookupCmd)
}

func openRegistry(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}
	opt, path, err := options()
	if err != nil {
		return err
	}
	registry, err = ordkv.OpenRegistry(path, opt)
	return err
}

func closeRegistry(cmd *cobra.Command, args []string) error {
	if registry != nil {
		err := registry.Close()
		registry = nil
		if err != nil {
			return err
		}
	}
	return printMetrics(cmd, args)
}
