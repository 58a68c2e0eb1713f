package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/sceneswitch/internal/batch"
	"github.com/kiranshivaraju/sceneswitch/internal/catalog"
	"github.com/kiranshivaraju/sceneswitch/internal/diagnostics"
	"github.com/kiranshivaraju/sceneswitch/internal/media"
	"github.com/kiranshivaraju/sceneswitch/internal/staging"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

type runOptions struct {
	effects     []string
	concurrency int
	manifest    string
	quiet       bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [flags] FILE...",
		Short: "Run one batch in-process and print the results",
		Long: "Stages every file, submits one job per (file, effect) pair to the configured provider,\n" +
			"polls until each job finishes and prints the collected artifacts.\n" +
			"Ctrl-C cancels the batch and still prints whatever already completed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, opts, args)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.effects, "effect", "e", nil, "Effect code to apply (repeatable)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Pairs processed at once (default from BATCH_CONCURRENCY)")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "Write the finished batch as JSON to this file")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not report progress on stderr")
	_ = cmd.MarkFlagRequired("effect")
	return cmd
}

func runBatch(cmd *cobra.Command, cc *commandContext, opts runOptions, paths []string) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	stderr := cmd.ErrOrStderr()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	intake, err := media.NewIntake(cfg.Upload)
	if err != nil {
		return err
	}
	assets, rejected := intake.AcceptPaths(paths)
	for _, r := range rejected {
		fmt.Fprintf(stderr, "skipping %s\n", r.Error())
	}

	cat, err := catalog.Load(cfg.Batch.CatalogFile)
	if err != nil {
		return err
	}
	transformer, err := cc.newProvider(cfg.Provider)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stager, err := staging.NewStager(ctx, cfg.Staging)
	if err != nil {
		return err
	}

	policy := batch.PolicyFromConfig(cfg.Batch)
	if opts.concurrency > 0 {
		policy.ConcurrencyLimit = opts.concurrency
	}
	orch := batch.NewOrchestrator(stager, transformer, cat, policy, batch.WithLogger(logger))

	effects := batch.NormalizeEffects(opts.effects)
	if err := orch.Validate(assets, effects); err != nil {
		return err
	}

	run := batch.NewBatchRun(uuid.Nil, assets, effects)
	var rec batch.Recorder
	if !opts.quiet {
		rec = &progressReporter{w: stderr}
	}
	runErr := orch.Run(ctx, run, rec)

	printResults(cmd.OutOrStdout(), run)

	if opts.manifest != "" {
		if err := writeManifest(opts.manifest, run); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func printResults(w io.Writer, run *models.BatchRun) {
	fmt.Fprintf(w, "Batch %s: %s (%.0f%%)\n", run.ID, run.Status, run.Progress)

	if len(run.StagingFailures) > 0 {
		rows := make([][]string, 0, len(run.StagingFailures))
		for _, f := range run.StagingFailures {
			rows = append(rows, []string{f.AssetName, f.Reason})
		}
		fmt.Fprintln(w, renderTable([]string{"Not staged", "Reason"}, rows, nil))
	}

	if len(run.Jobs) > 0 {
		rows := make([][]string, 0, len(run.Jobs))
		for _, j := range run.Jobs {
			detail := j.OutputRef
			if detail == "" {
				detail = j.FailureReason
			}
			rows = append(rows, []string{j.AssetName, j.Effect, string(j.Status), strconv.Itoa(j.Attempts), detail})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Asset", "Effect", "Status", "Polls", "Output / Reason"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
	}

	if len(run.Artifacts) > 0 {
		rows := make([][]string, 0, len(run.Artifacts))
		for _, a := range run.Artifacts {
			rows = append(rows, []string{a.Name, a.Effect, a.OutputRef})
		}
		fmt.Fprintln(w, renderTable([]string{"Artifact", "Effect", "Output"}, rows, nil))
	}

	for _, g := range diagnostics.GroupFailures(run.Jobs) {
		fmt.Fprintf(w, "%d job(s) %s: %s\n", g.Count, g.Outcome, g.SampleReason)
	}
}

type manifest struct {
	*models.BatchRun
	Diagnostics []models.FailureGroup `json:"diagnostics"`
}

// writeManifest replaces path atomically while holding an advisory lock on path+".lock",
// so concurrent runs pointed at the same manifest do not interleave.
func writeManifest(path string, run *models.BatchRun) error {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock manifest: %w", err)
	}
	if !ok {
		return fmt.Errorf("manifest %s is locked by another run", path)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(manifest{BatchRun: run, Diagnostics: diagnostics.GroupFailures(run.Jobs)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// progressReporter prints run events to stderr.
type progressReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *progressReporter) PhaseChanged(phase models.BatchPhase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "phase: %s\n", phase)
}

func (p *progressReporter) JobChanged(job models.TransformJob) {
	if !job.Status.Terminal() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "  %s / %s: %s\n", job.AssetName, job.Effect, job.Status)
}

func (p *progressReporter) ProgressChanged(progress float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "progress: %3.0f%%\n", progress)
}

var _ batch.Recorder = (*progressReporter)(nil)
