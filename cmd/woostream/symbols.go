package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rickgao/woostream/internal/api"
	"github.com/rickgao/woostream/internal/config"
)

func newSymbolsCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "symbols [symbol]",
		Short: "List tradable symbols from the public REST API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithDefaults(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client, err := api.NewClient(cfg.Account.ApplicationID, nil, apiOptions(cfg, slog.Default())...)
			if err != nil {
				return err
			}
			defer client.Close()

			var symbols []api.Symbol
			if len(args) == 1 {
				resp, err := client.GetExchangeInfo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				symbols = []api.Symbol{resp.Info}
			} else {
				resp, err := client.GetAvailableSymbols(cmd.Context())
				if err != nil {
					return err
				}
				symbols = resp.Rows
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(symbols)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tBASE_MIN\tBASE_TICK\tQUOTE_TICK\tMIN_NOTIONAL")
			for _, s := range symbols {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Symbol, s.BaseMin, s.BaseTick, s.QuoteTick, s.MinNotional)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
