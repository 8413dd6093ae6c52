package main

import (
	"github.com/spf13/cobra"

	"github.com/syssam/recordset"
)

type entityInfo struct {
	Name       string         `yaml:"name"`
	Table      string         `yaml:"table"`
	PrimaryKey string         `yaml:"primary_key"`
	Relations  []relationInfo `yaml:"relations,omitempty"`
	Columns    []columnInfo   `yaml:"columns,omitempty"`
}

type relationInfo struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Target     string `yaml:"target"`
	ForeignKey string `yaml:"foreign_key,omitempty"`
}

type columnInfo struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	PrimaryKey bool   `yaml:"primary_key,omitempty"`
	Nullable   bool   `yaml:"nullable,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [entity]",
		Short: "Describe the configured entities",
		Long:  "List every configured entity, or describe one entity with its relations and table columns.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if len(args) == 0 {
				return printYAML(cmd, client.Registry().Names())
			}
			s, err := client.Session(args[0])
			if err != nil {
				return err
			}
			return inspectEntity(cmd, s)
		},
	}
}

func inspectEntity(cmd *cobra.Command, s *recordset.Session) error {
	m := s.Model()
	info := entityInfo{Name: m.Name(), Table: m.Table(), PrimaryKey: m.PrimaryKey()}
	for _, r := range m.Relations() {
		info.Relations = append(info.Relations, relationInfo{
			Name:       r.Name,
			Kind:       r.Kind.String(),
			Target:     r.Target,
			ForeignKey: r.ForeignKey,
		})
	}
	if m.Table() != "" {
		cols, err := s.GetSchema(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range cols {
			info.Columns = append(info.Columns, columnInfo{
				Name:       c.Name,
				Type:       c.Type,
				PrimaryKey: c.PrimaryKey,
				Nullable:   c.Nullable,
			})
		}
	}
	return printYAML(cmd, info)
}
