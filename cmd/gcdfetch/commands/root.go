package commands

import (
	"context"
	"errors"
	"fmt"
	"gcdfetch/lib/credentials"
	"gcdfetch/lib/history"
	"gcdfetch/lib/notify"
	"gcdfetch/lib/restyutil"
	"gcdfetch/lib/telemetry"
	"gcdfetch/services/fetcher"
	"log/slog"

	"github.com/spf13/cobra"
)

// errDuplicate ends a run whose dump is already in the history. it is
// not logged as a failure but still exits with status 1.
var errDuplicate = errors.New("dump was already downloaded")

type flags struct {
	config       string
	verbose      bool
	source       string
	outputDir    string
	history      string
	failOnNotice bool
}

type state struct {
	flags flags
	cfg   Config
}

// apply overrides the config with the flags that were given explicitly.
func (s *state) apply(cmd *cobra.Command) {
	if cmd.Flags().Changed("output-dir") {
		s.cfg.OutputDir = s.flags.outputDir
	}
	if cmd.Flags().Changed("history") {
		s.cfg.History.Path = s.flags.history
	}
	if cmd.Flags().Changed("fail-on-notice") {
		s.cfg.FailOnNotice = s.flags.failOnNotice
	}
}

func (s *state) preRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(s.flags.config)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	s.cfg = cfg
	s.apply(cmd)

	telemetry.InitSlog(s.flags.verbose, s.cfg.LogFile)

	if s.flags.verbose && s.cfg.HttpDumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(s.cfg.HttpDumpDir)
		if err != nil {
			return fmt.Errorf("failed to create http dump dir: %w", err)
		}
		s.cfg.Portal.HttpDump = out
	}
	return nil
}

// credentialSource picks the file strategy when a path is given, unless
// --source says otherwise.
func (s *state) credentialSource(cmd *cobra.Command, args []string) (credentials.Source, string, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	if cmd.Flags().Changed("source") {
		source, err := credentials.ParseSource(s.flags.source)
		return source, path, err
	}
	if path != "" {
		return credentials.SourceFile, path, nil
	}
	return credentials.SourceSecret, "", nil
}

func (s *state) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	source, path, err := s.credentialSource(cmd, args)
	if err != nil {
		return err
	}
	provider, err := credentials.FromSource(ctx, source, path, s.cfg.Secret)
	if err != nil {
		return err
	}

	store, err := history.Open(s.cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()

	service := fetcher.NewService(
		provider,
		store,
		notify.New(s.cfg.Notify),
		fetcher.Options{
			Portal:       s.cfg.Portal,
			OutputDir:    s.cfg.OutputDir,
			FailOnNotice: s.cfg.FailOnNotice,
		},
		slog.Default(),
	)

	result, err := service.Run(ctx)
	if err != nil {
		return err
	}

	switch result.Status {
	case fetcher.StatusDuplicate:
		return fmt.Errorf("%w: %s", errDuplicate, result.Identity)
	case fetcher.StatusNotice:
		fmt.Fprintln(cmd.OutOrStdout(), result.Notice)
	case fetcher.StatusSaved:
		fmt.Fprintln(cmd.OutOrStdout(), result.Path)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	s := &state{}

	root := &cobra.Command{
		Use:   "gcdfetch [credentials-file]",
		Short: "Downloads the latest Grand Comics Database MySQL dump unless it was already downloaded.",
		Long: `Logs into comics.org, reads the timestamp of the current MySQL dump and
downloads it into the output directory. Timestamps of downloaded dumps are
kept in the history, a dump that is already in the history is not
downloaded again.

Without a credentials file the login is read from AWS Secrets Manager.`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: s.preRun,
		RunE:              s.run,
	}

	root.PersistentFlags().StringVar(&s.flags.config, "config", "gcdfetch.json5", "The config file to read.")
	root.PersistentFlags().BoolVarP(&s.flags.verbose, "verbose", "v", false, "Log debug messages and dump http exchanges.")
	root.PersistentFlags().StringVar(&s.flags.history, "history", "", "The download history, overrides the config.")

	root.Flags().StringVar(&s.flags.source, "source", "", "Where to read credentials from, \"file\" or \"secret\".")
	root.Flags().StringVarP(&s.flags.outputDir, "output-dir", "o", "", "The directory the dump is written to.")
	root.Flags().BoolVar(&s.flags.failOnNotice, "fail-on-notice", false, "Exit with an error when the portal answers with a notice.")

	root.AddCommand(newHistoryCommand(s))
	return root
}

// ExecuteContext runs the command line and returns the exit code.
func ExecuteContext(ctx context.Context) int {
	err := newRootCommand().ExecuteContext(ctx)
	if errors.Is(err, errDuplicate) {
		slog.Info("nothing to do", "reason", err.Error())
		return 1
	}
	if err != nil {
		slog.Error("gcdfetch failed", "err", err)
		return 1
	}
	return 0
}
