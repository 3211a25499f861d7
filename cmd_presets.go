package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rook-computer/bgenerator/internal/texture"
)

var presetsCmd = &cobra.Command{
	Use:   "presets [id]",
	Short: "List the built-in presets",
	Long:  `List the built-in looks, or print one preset's full config as YAML.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPresets,
}

func runPresets(cmd *cobra.Command, args []string) error {
	catalog, err := texture.Builtin()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		p, err := catalog.Find(args[0])
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(p)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tBASE\tTINT\tGRAIN\tVIGNETTE\tBLUR\n")
	for _, p := range catalog.List() {
		c := p.Config
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %.0f%%\t%g\t%g\t%g\n",
			p.ID, p.Name, c.BaseColor, c.TintColor, c.TintStrength*100, c.GrainIntensity, c.VignetteStrength, c.BlurRadius)
	}
	return tw.Flush()
}
