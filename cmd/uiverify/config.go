package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(o *options) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			if asYAML {
				enc := yaml.NewEncoder(o.stdout)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(cfg)
			}
			_, err = o.stdout.Write([]byte(cfg.String() + "\n"))
			return err
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print as YAML")
	return cmd
}
