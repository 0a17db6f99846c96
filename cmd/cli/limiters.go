package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/throttle/internal/application/dto"
	"github.com/turtacn/throttle/internal/config"
)

func newLimitersCommand(load func() (*config.Config, error)) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "limiters",
		Short: "Print the effective named rate limiters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			rules, err := cfg.RateLimit.Rules()
			if err != nil {
				return err
			}
			return writeLimiters(cmd.OutOrStdout(), format, dto.NewLimitersResponse(cfg.RateLimit.Backend, rules))
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "output format: table, json or yaml")
	return cmd
}

func writeLimiters(w io.Writer, format string, resp *dto.LimitersResponse) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(resp)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Window", "Max Requests", "Key Strategy"})
	for _, l := range resp.Limiters {
		t.AppendRow(table.Row{l.Name, l.Window, l.MaxRequests, l.KeyStrategy})
	}
	t.AppendFooter(table.Row{"", "", "backend", resp.Backend})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
