package main

import (
	"github.com/spf13/cobra"
)

func newCountCmd(a *app) *cobra.Command {
	var (
		where map[string]string
		field string
	)
	cmd := &cobra.Command{
		Use:   "count <entity>",
		Short: "Count records of an entity",
		Long:  "Count the records matching --where, or the non-null values of --field among them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := a.session(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			var n int64
			if field != "" {
				n, err = s.CountField(cmd.Context(), field, condition(where))
			} else {
				n, err = s.CountAll(cmd.Context(), condition(where))
			}
			if err != nil {
				return err
			}
			return printYAML(cmd, map[string]int64{"count": n})
		},
	}
	cmd.Flags().StringToStringVarP(&where, "where", "w", nil, "equality condition, field=value")
	cmd.Flags().StringVar(&field, "field", "", "count non-null values of this column")
	return cmd
}
