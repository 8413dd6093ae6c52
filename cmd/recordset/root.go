package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/recordset"
	"github.com/syssam/recordset/config"
)

// app holds the flags shared by every subcommand.
type app struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "recordset",
		Short:        "Recordset CLI",
		Long:         "Inspect and query the entities declared in a recordset configuration file.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "recordset.yaml", "path to the configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log statements to stderr")

	root.AddCommand(newInspectCmd(a))
	root.AddCommand(newFindCmd(a))
	root.AddCommand(newCountCmd(a))
	return root
}

// open loads the configuration and opens a client on it.
func (a *app) open(ctx context.Context, cmd *cobra.Command) (*recordset.Client, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	client, err := cfg.Open(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Dialect, err)
	}
	return client, nil
}

// session opens a client and starts a session on entity. The returned
// function closes the client.
func (a *app) session(cmd *cobra.Command, entity string) (*recordset.Session, func(), error) {
	client, err := a.open(cmd.Context(), cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := client.Session(entity)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return s, func() { _ = client.Close() }, nil
}

// printYAML writes v to the command output as a YAML document.
func printYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// condition turns --where flags into an equality condition.
func condition(where map[string]string) recordset.Condition {
	if len(where) == 0 {
		return nil
	}
	cond := make(recordset.Condition, len(where))
	for k, v := range where {
		cond[k] = v
	}
	return cond
}
