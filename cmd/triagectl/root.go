// Triagectl triages stored support tickets in batch from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/linnemanlabs/ticketry/internal/bootstrap"
	tc "github.com/linnemanlabs/ticketry/internal/cfg"
	"github.com/linnemanlabs/ticketry/internal/triage"
)

const appName = "triagectl"

// app is the state shared by every subcommand. It is built in the root
// PersistentPreRunE from the same flags and TICKETRY_ environment the server
// reads.
type app struct {
	cfg     tc.Config
	logCfg  log.Config
	goFlags *flag.FlagSet

	logger  log.Logger
	store   bootstrap.Store
	seeder  triage.Seeder
	svc     *triage.Service
	closers []func()
}

// newRootCmd builds the command tree. The caller closes the returned app once
// the command has run.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{goFlags: flag.NewFlagSet(appName, flag.ContinueOnError)}
	a.cfg.RegisterFlags(a.goFlags)
	a.logCfg.RegisterFlags(a.goFlags)

	root := &cobra.Command{
		Use:   appName,
		Short: "Triage support tickets from the command line",
		Long:  "triagectl runs the ticket triage pipeline against the configured backend.\nFlags may also be set through TICKETRY_ environment variables.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.Version = v.Get().Version
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.PersistentFlags().AddGoFlagSet(a.goFlags)

	root.AddCommand(newOpenCmd(a))
	root.AddCommand(newTicketCmd(a))
	root.AddCommand(newSeedCmd(a))
	root.AddCommand(newActionsCmd(a))
	return root, a
}

// open resolves configuration and builds the pipeline.
func (a *app) open(cmd *cobra.Command) error {
	ctx := cmd.Context()

	// cobra parsed into the shared values; mark them set on the go FlagSet
	// so the environment does not override them
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if a.goFlags.Lookup(f.Name) != nil {
			_ = a.goFlags.Set(f.Name, f.Value.String())
		}
	})
	cfg.FillFromEnv(a.goFlags, "TICKETRY_", func(format string, args ...any) {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	})

	if err := errors.Join(a.cfg.Validate(), a.logCfg.Validate()); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(a.logCfg.ToOptions(appName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	a.closers = append(a.closers, func() { _ = lg.Sync() })
	a.logger = lg.With("component", "cli")
	ctx = log.WithContext(ctx, a.logger)
	cmd.SetContext(ctx)

	s, closeStore, err := bootstrap.OpenStore(ctx, &a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.store = s
	a.closers = append(a.closers, closeStore)

	backend, closeCache, err := bootstrap.CacheCustomers(ctx, &a.cfg, s, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeCache)
	a.seeder = bootstrap.SeedTarget(s, backend)

	if a.cfg.SeedFile != "" {
		if err := bootstrap.Seed(ctx, a.cfg.SeedFile, a.seeder, a.logger); err != nil {
			return fmt.Errorf("seed %s: %w", a.cfg.SeedFile, err)
		}
	}

	vocab, err := bootstrap.Vocabulary(ctx, &a.cfg, a.logger)
	if err != nil {
		return err
	}

	notifier, closers := bootstrap.Notifiers(ctx, &a.cfg, a.logger)
	for _, c := range closers {
		a.closers = append(a.closers, closeFunc(c))
	}

	a.svc = triage.NewService(backend, a.logger,
		triage.WithTicketSource(s),
		triage.WithVocabulary(vocab),
		triage.WithNotifier(notifier),
		triage.WithAgentName(a.cfg.AgentName),
	)
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func closeFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, a := newRootCmd()
	defer a.close()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
