package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/fluxcore/app"
	"github.com/dmitrymomot/fluxcore/core/dispatcher"
	"github.com/dmitrymomot/fluxcore/core/logger"
	"github.com/dmitrymomot/fluxcore/internal/todo"
)

type rootFlags struct {
	configFile string
	debug      bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "fluxcore",
		Short:        "Run the todo list demo on the fluxcore application core",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML options file (overrides APP_CONFIG_FILE)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "return errors instead of publishing them (overrides APP_DEBUG)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	cmd.AddCommand(
		newRunCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)

	return cmd
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var toggle []string

	cmd := &cobra.Command{
		Use:   "run [todo...]",
		Short: "Add todos through the input module and print the rendered list",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			core, err := buildCore(cmd, flags)
			if err != nil {
				return err
			}
			if err := todo.Register(core, cmd.OutOrStdout()); err != nil {
				return err
			}
			if err := core.Init(ctx, nil); err != nil {
				return err
			}
			defer func() { _ = core.Destroy(ctx) }()

			for _, text := range args {
				if err := core.Publish(ctx, todo.InputChannel, text); err != nil {
					return err
				}
			}
			for _, id := range toggle {
				if err := core.Dispatch(ctx, dispatcher.NewAction(todo.ActionToggle, id)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&toggle, "toggle", nil, "ids of todos to mark done after adding")

	return cmd
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the merged core configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := buildCore(cmd, flags)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), core.ConfigMap())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// buildCore loads the environment config and applies flag overrides.
func buildCore(cmd *cobra.Command, flags *rootFlags) (*app.Core, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if flags.configFile != "" {
		cfg.ConfigFile = flags.configFile
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = flags.debug
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	log := logger.New(append(app.LoggerOptions(cfg),
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithAttr(slog.String("version", version)),
	)...)

	return app.NewFromConfig(cfg, app.WithLogger(log))
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
