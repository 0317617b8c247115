package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"textnotes/bridge"
	"textnotes/store"
)

// rootOptions holds global flags shared by every subcommand.
type rootOptions struct {
	configFile string
	v          *viper.Viper
}

// newRootCommand creates the textnotes CLI.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "textnotes",
		Short:         "Timestamped text notes stored in a single JSON file",
		Long:          "textnotes keeps an ordered list of timestamped notes in one JSON file and serves the note commands to the desktop front end.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("data-file", "", "path of the JSON store file (default \"data.json\")")
	flags.String("backend", "", "storage backend: file or redis (default \"file\")")
	opts.v.BindPFlag("data_file", flags.Lookup("data-file"))
	opts.v.BindPFlag("backend", flags.Lookup("backend"))

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newAddCommand(opts))
	cmd.AddCommand(newUpdateCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newExportCommand(opts))

	return cmd
}

// env is what every subcommand needs once configuration is resolved.
type env struct {
	cfg    *Config
	logger *zap.Logger
	store  store.Store
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close store", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func (o *rootOptions) setup(ctx context.Context) (*env, error) {
	cfg, err := loadConfig(o.v, o.configFile)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, store: st}, nil
}

// withCommands runs fn with the command surface wired to the configured store.
func (o *rootOptions) withCommands(cmd *cobra.Command, fn func(context.Context, *bridge.Commands) error) error {
	ctx := cmd.Context()
	e, err := o.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()
	return fn(ctx, bridge.New(e.store, e.logger.Named("bridge")))
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the note commands to the desktop front end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := opts.setup(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			e.logger.Info("starting textnotes bridge",
				zap.String("backend", e.cfg.Backend),
				zap.String("data_file", e.cfg.DataFile))
			return newApp(e.cfg, e.store, e.logger).serve(ctx)
		},
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every note as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCommands(cmd, func(ctx context.Context, c *bridge.Commands) error {
				texts, err := c.LoadTexts(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), texts)
			})
		},
	}
}

func newAddCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <content>",
		Short: "Add a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCommands(cmd, func(ctx context.Context, c *bridge.Commands) error {
				item, err := c.AddText(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), item)
			})
		},
	}
}

func newUpdateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <content>",
		Short: "Replace the content of a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withCommands(cmd, func(ctx context.Context, c *bridge.Commands) error {
				item, err := c.UpdateText(ctx, id, args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), item)
			})
		},
	}
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note; deleting a missing id succeeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withCommands(cmd, func(ctx context.Context, c *bridge.Commands) error {
				return c.DeleteText(ctx, id)
			})
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every note to stdout as JSON or YAML",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("invalid format %q: must be json or yaml", format)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCommands(cmd, func(ctx context.Context, c *bridge.Commands) error {
				texts, err := c.LoadTexts(ctx)
				if err != nil {
					return err
				}
				if format == "yaml" {
					enc := yaml.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent(2)
					if err := enc.Encode(texts); err != nil {
						return err
					}
					return enc.Close()
				}
				return printJSON(cmd.OutOrStdout(), texts)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json|yaml)")
	return cmd
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q must be an unsigned integer", ErrInvalidInput, s)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
