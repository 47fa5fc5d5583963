package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "列出可用的乐器定弦",
	Args:  cobra.NoArgs,
	RunE:  runInstruments,
}

type instrumentInfo struct {
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Strings []string  `json:"strings"`
	Tuning  []float64 `json:"tuning"`
	Frets   int       `json:"frets"`
	Aliases []string  `json:"aliases,omitempty"`
}

func runInstruments(cmd *cobra.Command, _ []string) error {
	registry, err := settings.Registry()
	if err != nil {
		return err
	}

	var infos []instrumentInfo
	for _, key := range registry.Keys() {
		t, err := registry.Lookup(key)
		if err != nil {
			return err
		}
		infos = append(infos, instrumentInfo{
			Key:     t.Key,
			Name:    t.DisplayName,
			Strings: t.StringNames,
			Tuning:  t.OpenFrequencies,
			Frets:   t.FretCount,
			Aliases: registry.Aliases(key),
		})
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tSTRINGS\tFRETS\tALIASES")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			info.Key, info.Name, strings.Join(info.Strings, " "), info.Frets, strings.Join(info.Aliases, ", "))
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return nil
}
