package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/ttsbridge/pkg/tts/engines"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List installed speech engines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		installed := engines.Discover()
		out := cmd.OutOrStdout()
		if len(installed) == 0 {
			fmt.Fprintf(out, "No speech engine found. Install one of: %s\n", strings.Join(engines.Names(), ", "))
			return nil
		}
		for _, e := range installed {
			line := fmt.Sprintf("%-8s %s", e.Name, e.Label)
			if e.Default {
				line += " " + keyword("default")
			}
			if e.Name == cfg.Engine {
				line += " " + faint("(configured)")
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}
