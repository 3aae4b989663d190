package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andreyvit/ordkv"
)

var (
	rawTable *ordkv.RawTable

	rawCommands = &cobra.Command{
		Use:                "raw",
		Short:              "Operate on raw records",
		PersistentPreRunE:  openRawTable,
		PersistentPostRunE: closeRawTable,
	}

	rawGetCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseBytes(args[0])
			if err != nil {
				return err
			}
			v, found, err := rawTable.Find(key)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatBytes(v))
			return nil
		},
	}
	rawPrevCmd = &cobra.Command{
		Use:   "prev [key]",
		Short: "Reads the record with the largest key at or before the given one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseBytes(args[0])
			if err != nil {
				return err
			}
			k, v, found, err := rawTable.FindPrev(key)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no key at or before %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", formatBytes(k), formatBytes(v))
			return nil
		},
	}
	rawPutCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseBytes(args[0])
			if err != nil {
				return err
			}
			value, err := parseBytes(args[1])
			if err != nil {
				return err
			}
			return rawTable.Insert(key, value)
		},
	}
	rawDelCmd = &cobra.Command{
		Use:   "del [key]...",
		Short: "Deletes keys in parallel and prints how many existed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([][]byte, len(args))
			for i, arg := range args {
				key, err := parseBytes(arg)
				if err != nil {
					return err
				}
				keys[i] = key
			}
			fmt.Fprintln(cmd.OutOrStdout(), rawTable.EraseMany(keys))
			return nil
		},
	}
	rawScanCmd = &cobra.Command{
		Use:   "scan [prefix]",
		Short: "Lists records whose key starts with prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix []byte
			if len(args) > 0 {
				var err error
				prefix, err = parseBytes(args[0])
				if err != nil {
					return err
				}
			}
			limit, _ := cmd.Flags().GetInt("limit")
			var n int
			return rawTable.Scan(prefix, func(k, v []byte) bool {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", formatBytes(k), formatBytes(v))
				n++
				return limit <= 0 || n < limit
			})
		},
	}
	rawDumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Prints every record in hex",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rawTable.Dump(ordkv.DumpAll)
			fmt.Fprint(cmd.OutOrStdout(), s)
			return err
		},
	}
	rawCompactCmd = &cobra.Command{
		Use:   "compact",
		Short: "Compacts the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rawTable.Compact()
		},
	}
	rawFlushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Makes buffered writes durable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rawTable.Flush()
		},
	}
)

func init() {
	rawScanCmd.Flags().Int("limit", 0, "Stop after this many records (0 = no limit)")

	rawCommands.AddCommand(rawGetCmd)
	rawCommands.AddCommand(rawPrevCmd)
	rawCommands.AddCommand(rawPutCmd)
	rawCommands.AddCommand(rawDelCmd)
	rawCommands.AddCommand(rawScanCmd)
	rawCommands.AddCommand(rawDumpCmd)
	rawCommands.AddCommand(rawCompactCmd)
	rawCommands.AddCommand(rawFlushCmd)
}

func openRawTable(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}
	opt, path, err := options()
	if err != nil {
		return err
	}
	rawTable, err = ordkv.OpenRawTable(path, opt)
	return err
}

func closeRawTable(cmd *cobra.Command, args []string) error {
	if rawTable != nil {
		err := rawTable.Close()
		rawTable = nil
		if err != nil {
			return err
		}
	}
	return printMetrics(cmd, args)
}
