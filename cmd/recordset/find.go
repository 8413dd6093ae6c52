package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/recordset"
)

type findOptions struct {
	where     map[string]string
	with      []string
	fields    []string
	order     []string
	recursive int
	limit     int
	offset    int
	first     bool
}

func newFindCmd(a *app) *cobra.Command {
	o := &findOptions{}
	cmd := &cobra.Command{
		Use:   "find <entity> [id]",
		Short: "Fetch records of an entity",
		Long: "Fetch the record with the given primary key, or the records matching --where. " +
			"Relations requested with --with or --recursive are loaded into the output.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := a.session(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()
			return runFind(cmd, s, o, args[1:])
		},
	}
	f := cmd.Flags()
	f.StringToStringVarP(&o.where, "where", "w", nil, "equality condition, field=value")
	f.StringSliceVar(&o.with, "with", nil, "relations to load")
	f.StringSliceVar(&o.fields, "fields", nil, "columns to select")
	f.StringArrayVar(&o.order, "order", nil, "order by field[:asc|desc], repeatable")
	f.IntVarP(&o.recursive, "recursive", "r", 0, "load has-many relations this many levels deep, -1 without limit")
	f.IntVarP(&o.limit, "limit", "l", 0, "maximum number of records")
	f.IntVar(&o.offset, "offset", 0, "number of records to skip")
	f.BoolVar(&o.first, "first", false, "return only the first matching record")
	return cmd
}

func runFind(cmd *cobra.Command, s *recordset.Session, o *findOptions, id []string) error {
	for _, rel := range o.with {
		s.With(rel)
	}
	if o.recursive != 0 {
		s.WithRecursive(recordset.Depth(o.recursive))
	}
	for _, spec := range o.order {
		field, dir, _ := strings.Cut(spec, ":")
		s.Order(field, dir)
	}
	if o.limit > 0 {
		s.Limit(o.limit, o.offset)
	}
	var opts []recordset.QueryOption
	if len(o.fields) > 0 {
		opts = append(opts, recordset.Fields(o.fields...))
	}
	ctx := cmd.Context()

	if len(id) > 0 || o.first {
		var (
			rec *recordset.Record
			err error
		)
		if len(id) > 0 {
			rec, err = s.Find(ctx, id[0], opts...)
		} else {
			rec, err = s.FindOneBy(ctx, condition(o.where), opts...)
		}
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("no %s record found", s.Model().Name())
		}
		return printYAML(cmd, rec.Map())
	}

	recs, err := s.FindBy(ctx, condition(o.where), opts...)
	if err != nil {
		return err
	}
	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		out[i] = rec.Map()
	}
	return printYAML(cmd, out)
}
