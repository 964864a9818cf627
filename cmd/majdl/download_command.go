package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"majdl/internal/config"
	"majdl/internal/envelope"
	"majdl/internal/ledger"
	"majdl/internal/lobby"
	"majdl/internal/logging"
	"majdl/internal/pipeline"
	"majdl/internal/recordstore"
	"majdl/internal/services"
)

func runDownload(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDownload(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	runCtx := services.WithRequestID(cmd.Context(), uuid.NewString())
	logger = logging.WithContext(runCtx, logger)

	codec, err := ctx.codec(cfg, logger)
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, codec, ctx.httpClient(cfg), logger)
	if err != nil {
		return err
	}

	var report *pipeline.Report
	if ctx.flags.noNewRecords {
		logger.Info("decoding existing records",
			logging.String(logging.FieldEventType, "run_start"),
			logging.String("mode", "decode_only"),
			logging.String("output_dir", cfg.Paths.OutputDir),
		)
		report, err = p.DecodeExisting(runCtx)
	} else {
		logger.Info("downloading records",
			logging.String(logging.FieldEventType, "run_start"),
			logging.String("mode", "download"),
			logging.String("output_dir", cfg.Paths.OutputDir),
			logging.Bool("memoize", cfg.Paths.MemoizeFile != ""),
			logging.Bool("raw_dump", cfg.Paths.RawDir != ""),
		)
		var session *lobby.Session
		session, err = openSession(runCtx, cmd, ctx, cfg, codec, logger)
		if err != nil {
			return err
		}
		report, err = p.Run(runCtx, session)
	}

	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

func newPipeline(cfg *config.Config, codec *envelope.Codec, client lobby.HTTPDoer, logger *slog.Logger) (*pipeline.Pipeline, error) {
	store, err := recordstore.New(cfg.Paths.OutputDir, cfg.Paths.RawDir)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{
		Store:    store,
		Ledger:   ledger.New(cfg.Paths.MemoizeFile, logger),
		Codec:    codec,
		HTTP:     client,
		Logger:   logger,
		PageSize: cfg.Download.PageSize,
		Start:    cfg.Download.Start,
	})
}

// openSession connects to the lobby and logs in. The session is closed if
// authentication fails.
func openSession(ctx context.Context, cmd *cobra.Command, cc *commandContext, cfg *config.Config, codec *envelope.Codec, logger *slog.Logger) (*lobby.Session, error) {
	session, err := lobby.Connect(ctx, cfg, logger,
		lobby.WithCodec(codec),
		lobby.WithDiscoveryOptions(lobby.WithHTTPClient(cc.httpClient(cfg))),
	)
	if err != nil {
		return nil, err
	}
	auth := lobby.NewAuthenticator(session, lobby.NewFileCredentialStore(cfg.Paths.SessionFile), cc.prompter(cmd), logger)
	if err := auth.Authenticate(ctx); err != nil {
		_ = session.Close()
		return nil, err
	}
	return session, nil
}

func printReport(out io.Writer, report *pipeline.Report) {
	rows := make([][]string, 0, len(report.Rows()))
	for _, row := range report.Rows() {
		rows = append(rows, []string{row.Label, fmt.Sprintf("%d", row.Count)})
	}
	fmt.Fprintln(out, renderTable([]string{"Records", "Count"}, rows, 1))
	for _, failure := range report.Failures {
		fmt.Fprintf(out, "failed: %s at %s: %v\n", failure.ID, failure.Stage, failure.Err)
	}
}
