package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashparshp/hairone/pkg/catalog"
)

func newListCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in scenarios and identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := o.identities()
			if err != nil {
				return err
			}
			w := o.writer()

			w.Header("Scenarios")
			rows := [][]string{{"NAME", "STEPS", "IDENTITY", "TAGS"}}
			for _, sc := range catalog.Scenarios() {
				identity := sc.Identity
				if identity == "" {
					identity = "-"
				}
				rows = append(rows, []string{sc.Name, fmt.Sprint(len(sc.Steps)), identity, strings.Join(sc.Tags, ",")})
			}
			w.Columns(rows)

			w.Header("Identities")
			names := make([]string, 0, len(ids))
			for name := range ids {
				names = append(names, name)
			}
			sort.Strings(names)
			rows = [][]string{{"NAME", "ROLE", "USER"}}
			for _, name := range names {
				id := ids[name]
				rows = append(rows, []string{name, id.User.Role, id.User.Name})
			}
			w.Columns(rows)
			return nil
		},
	}
}
