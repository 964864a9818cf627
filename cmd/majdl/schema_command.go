package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"majdl/internal/config"
	"majdl/internal/lobby"
	"majdl/internal/lqproto"
)

func newSchemaCommand(ctx *commandContext) *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the client message schema",
	}

	schemaCmd.AddCommand(newSchemaFetchCommand(ctx))
	schemaCmd.AddCommand(newSchemaShowCommand(ctx))

	return schemaCmd
}

func newSchemaFetchCommand(ctx *commandContext) *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the message schema of the current client version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := schemaTarget(cfg, targetPath)
			if err != nil {
				return err
			}

			discoverer := lobby.NewDiscoverer(cfg, lobby.WithHTTPClient(ctx.httpClient(cfg)))
			schema, err := discoverer.FetchSchema(cmd.Context())
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create schema directory: %w", err)
			}
			if err := os.WriteFile(target, schema.Data, 0o644); err != nil {
				return fmt.Errorf("write schema: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Schema for client %s saved to %s (%d messages)\n",
				schema.Version, target, len(schema.Catalog.Names()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the schema (defaults to paths.schema_file)")
	return cmd
}

func newSchemaShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Report which message schema decoding will use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := cfg.Paths.SchemaFile
			if path == "" {
				fmt.Fprintln(out, "Schema: compiled-in (paths.schema_file not set)")
				return nil
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintf(out, "Schema: compiled-in (%s not found)\n", path)
				return nil
			}
			catalog, err := lqproto.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Schema: %s (%d messages)\n", catalog.Source(), len(catalog.Names()))
			return nil
		},
	}
}

func schemaTarget(cfg *config.Config, flagPath string) (string, error) {
	target := strings.TrimSpace(flagPath)
	if target == "" {
		target = cfg.Paths.SchemaFile
	} else {
		expanded, err := config.ExpandPath(target)
		if err != nil {
			return "", fmt.Errorf("resolve schema path: %w", err)
		}
		target = expanded
	}
	if target == "" {
		return "", errors.New("paths.schema_file is not set (use --path)")
	}
	return target, nil
}
