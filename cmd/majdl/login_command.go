package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"majdl/internal/lobby"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in interactively and store a fresh access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			prompter := ctx.prompter(cmd)
			if prompter == nil {
				return errors.New("majdl login needs an interactive terminal")
			}

			codec, err := ctx.codec(cfg, logger)
			if err != nil {
				return err
			}
			session, err := lobby.Connect(cmd.Context(), cfg, logger,
				lobby.WithCodec(codec),
				lobby.WithDiscoveryOptions(lobby.WithHTTPClient(ctx.httpClient(cfg))),
			)
			if err != nil {
				return err
			}
			defer session.Close()

			store := lobby.NewFileCredentialStore(cfg.Paths.SessionFile)
			if err := lobby.NewAuthenticator(session, store, prompter, logger).Interactive(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session saved to %s\n", store.Path())
			return nil
		},
	}
}
