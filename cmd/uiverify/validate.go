package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [scenario-name | file | dir | glob]...",
		Short: "Check scenarios without launching a browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := o.identities()
			if err != nil {
				return err
			}
			scenarios, err := selectScenarios(args, nil)
			if err != nil {
				return err
			}
			w := o.writer()
			errs := validateAll(scenarios, ids)
			for _, e := range errs {
				w.Error("%v", e)
			}
			if len(errs) > 0 {
				return reported(fmt.Errorf("%d of %d scenarios invalid", len(errs), len(scenarios)), exitInvalid)
			}
			w.Success("%d scenarios valid", len(scenarios))
			return nil
		},
	}
}
