package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shahzroux/masterforge"
	"github.com/shahzroux/masterforge/pkg/config"
	"github.com/shahzroux/masterforge/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what the persistent flags resolve to
type app struct {
	configFile string
	logLevel   string
	devLogs    bool

	settings *config.Config
	log      *logger.Logger
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "masterforge",
		Short: "Audio mastering engine",
		Long: `MasterForge - loudness analysis and mastering for finished mixes

Measures integrated loudness, true peak and loudness range (ITU-R BS.1770-4),
renders an EQ, dynamics and limiter chain towards a streaming platform target,
and exports 16/24-bit or 32-bit float WAV, or 320 kbps MP3 through ffmpeg.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "platforms" {
				return nil
			}
			if err := a.init(cmd); err != nil {
				return err
			}
			cmd.SetContext(logger.WithContext(cmd.Context(), a.log.With(zap.String("command", cmd.Name()))))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default ./masterforge.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.devLogs, "dev-logs", false, "human readable console logs")

	root.AddCommand(
		newAnalyzeCmd(a),
		newMasterCmd(a),
		newSpectrumCmd(a),
		newPlatformsCmd(),
		newVersionCmd(),
	)

	// every failure prints one status line before the non-zero exit
	for _, c := range root.Commands() {
		wrapRunE(c)
	}
	return root
}

func wrapRunE(c *cobra.Command) {
	run := c.RunE
	if run == nil {
		return
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
		return err
	}
}

func (a *app) init(cmd *cobra.Command) error {
	settings, err := config.Load(a.configFile)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return err
	}
	if a.logLevel != "" {
		settings.Logging.Level = strings.ToLower(a.logLevel)
	}
	if a.devLogs {
		settings.Logging.Development = true
	}

	log, err := logger.NewWithLevel(settings.Logging.Level, settings.Logging.Development)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return err
	}
	a.settings = settings
	a.log = log
	return nil
}

// engine builds an engine; progress goes to ch when it is not nil
func (a *app) engine(ch chan<- masterforge.ProgressUpdate) (*masterforge.Engine, error) {
	return masterforge.New(masterforge.Config{
		Settings:   a.settings,
		Logger:     a.log,
		ProgressCh: ch,
	})
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
