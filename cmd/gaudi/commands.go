package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gauditech/gaudi-sub004/internal/cli"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// checkCmd validates the blueprint without touching the database.
func checkCmd(a *app) *cobra.Command {
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the blueprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newSchemaOnlyClient(a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			def, err := client.Compile()
			if err != nil {
				return err
			}
			if showSQL {
				stmts, err := client.MigrateSQL(def)
				if err != nil {
					return err
				}
				for _, stmt := range stmts {
					fmt.Fprintf(a.stdout, "%s;\n\n", stmt)
				}
				return nil
			}
			fmt.Fprint(a.stdout, cli.FormatSuccess(summary(def)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSQL, "sql", false, "Print the CREATE statements instead of a summary")
	return cmd
}

// compileCmd writes the compiled Definition to the definition file, or to
// stdout when none is configured.
func compileCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the blueprint into a Definition file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" {
				a.cfg.DefinitionFile = output
			}
			client, err := newSchemaOnlyClient(a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			def, err := client.Compile()
			if err != nil {
				return err
			}
			fp, err := client.Fingerprint(def)
			if err != nil {
				return err
			}

			if a.cfg.DefinitionFile == "" || a.cfg.DefinitionFile == "-" {
				return definition.Encode(a.stdout, def)
			}
			if err := client.WriteDefinition(def); err != nil {
				return err
			}
			fmt.Fprint(a.stdout, cli.FormatSuccess(fmt.Sprintf("%s -> %s (fingerprint %s)",
				summary(def), a.cfg.DefinitionFile, shortHash(fp.Root))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Definition file to write, - for stdout")
	return cmd
}

// migrateCmd creates the tables of the Definition that do not exist yet.
func migrateCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				client, err := newSchemaOnlyClient(a.cfg)
				if err != nil {
					return err
				}
				defer client.Close()
				def, err := client.LoadDefinition()
				if err != nil {
					return err
				}
				stmts, err := client.MigrateSQL(def)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "-- "+cli.Dim("dry run, nothing executed"))
				for _, stmt := range stmts {
					fmt.Fprintf(a.stdout, "%s;\n", stmt)
				}
				return nil
			}

			client, err := newClient(a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			def, err := client.LoadDefinition()
			if err != nil {
				return err
			}
			n, err := client.Migrate(cmd.Context(), def)
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, cli.FormatSuccess(fmt.Sprintf("%s on %s",
				cli.FormatCount(n, "statement", "statements"), client.Dialect())))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print SQL without executing it")
	return cmd
}

// populateCmd runs one populator of the Definition.
func populateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "populate <name>",
		Short: "Run a populator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			def, err := client.LoadDefinition()
			if err != nil {
				return err
			}
			n, err := client.Populate(cmd.Context(), def, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, cli.FormatSuccess(fmt.Sprintf("populator %q created %s",
				args[0], cli.FormatCount(n, "record", "records"))))
			return nil
		},
	}
}

// summary describes the size of def in one line.
func summary(def *definition.Definition) string {
	endpoints := 0
	var walk func(eps []*definition.EntrypointDef)
	walk = func(eps []*definition.EntrypointDef) {
		for _, ep := range eps {
			endpoints += len(ep.Endpoints)
			walk(ep.Entrypoints)
		}
	}
	for _, api := range def.APIs {
		walk(api.Entrypoints)
	}
	parts := []string{
		cli.FormatCount(len(def.Models), "model", "models"),
		cli.FormatCount(endpoints, "endpoint", "endpoints"),
		cli.FormatCount(len(def.Populators), "populator", "populators"),
	}
	return strings.Join(parts, ", ")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
