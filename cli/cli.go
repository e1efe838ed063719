// Package cli defines the flagstored command tree.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/soden46/hyperlux-flagstore/config"
	"github.com/soden46/hyperlux-flagstore/contract"
	"github.com/soden46/hyperlux-flagstore/events"
	"github.com/soden46/hyperlux-flagstore/execution"
	"github.com/soden46/hyperlux-flagstore/logging"
	"github.com/soden46/hyperlux-flagstore/storage"
	"github.com/soden46/hyperlux-flagstore/wallet"
)

// Options stores global flags shared between commands.
type Options struct {
	ConfigPath string
	LogLevel   string
	DataDir    string
	Backend    string
}

// app is the state PersistentPreRunE prepares for every command.
type app struct {
	opts   Options
	cfg    config.Config
	logger *slog.Logger
	stderr io.Writer
}

// Execute builds the root command, runs it with args and returns any error.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCommand(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr}

	cmd := &cobra.Command{
		Use:           "flagstored",
		Short:         "flagstored hosts the flag store contract",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.opts.ConfigPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&a.opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.opts.DataDir, "data-dir", "", "Storage directory override")
	cmd.PersistentFlags().StringVar(&a.opts.Backend, "backend", "", "Storage backend override (memory, leveldb, badger)")

	cmd.AddCommand(
		newInstantiateCommand(a),
		newExecuteCommand(a),
		newQueryCommand(a),
		newKeysCommand(a),
		newDemoCommand(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.opts.ConfigPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.opts.LogLevel
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = a.opts.DataDir
	}
	if flags.Changed("backend") {
		cfg.Backend = a.opts.Backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewLogger(a.stderr, logging.ParseLevel(cfg.LogLevel))
	a.logger.Debug("config loaded", "backend", cfg.Backend, "data_dir", cfg.DataDir, "contract", cfg.Contract)
	return nil
}

// host is a VM over an opened backend.
type host struct {
	vm       *execution.VM
	registry *prometheus.Registry
	closers  []func() error
}

func (h *host) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i]())
	}
	return errors.Join(errs...)
}

func (a *app) openHost(ctx context.Context, cfg config.Config) (*host, error) {
	backend, err := storage.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	h := &host{closers: []func() error{backend.Close}}

	var c execution.Contract = contract.New(cfg.SelfTest)
	if cfg.WASMPath != "" {
		wc, err := execution.LoadWASM(cfg.WASMPath)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		c = wc
	}

	var pub events.Publisher = events.LogPublisher{Logger: a.logger}
	if cfg.P2P {
		g, err := events.StartGossip(ctx, cfg.Bootstrap, a.logger)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		h.closers = append(h.closers, g.Close)
		pub = events.Multi{pub, g}
	}

	h.registry = prometheus.NewRegistry()
	h.vm = execution.NewVM(backend, cfg.Contract, c,
		execution.WithLogger(a.logger),
		execution.WithPublisher(pub),
		execution.WithMetrics(execution.NewMetrics(h.registry)),
	)
	return h, nil
}

// signer loads the keystore named by --key, if any.
type signer struct {
	keyFile  string
	password string
}

func (s *signer) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.keyFile, "key", "", "Keystore file to sign the request with")
	cmd.Flags().StringVar(&s.password, "password", os.Getenv("FLAGSTORE_KEY_PASSWORD"), "Keystore password")
}

func (s *signer) wallet() (*wallet.Wallet, error) {
	if s.keyFile == "" {
		return nil, nil
	}
	return wallet.LoadKeystore(s.keyFile, s.password)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResponse(w io.Writer, resp contract.Response) error {
	if resp.Messages == nil {
		resp.Messages = []json.RawMessage{}
	}
	if resp.Log == nil {
		resp.Log = []contract.Attribute{}
	}
	return writeJSON(w, resp)
}

func newInstantiateCommand(a *app) *cobra.Command {
	var (
		count    uint32
		selfTest bool
		sign     signer
	)
	cmd := &cobra.Command{
		Use:   "instantiate",
		Short: "Instantiate the contract: write the flag and verify it reads back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("self-test") {
				cfg.SelfTest = selfTest
			}
			msg := contract.InitMsg{}
			if cmd.Flags().Changed("count") {
				msg.Count = &count
			}
			raw, err := json.Marshal(msg)
			if err != nil {
				return err
			}

			h, err := a.openHost(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			w, err := sign.wallet()
			if err != nil {
				return err
			}
			var resp contract.Response
			if w != nil {
				resp, err = h.vm.InstantiateSigned(cmd.Context(), execution.SignRequest(w, execution.EntryInstantiate, h.vm.Address(), raw))
			} else {
				resp, err = h.vm.Instantiate(cmd.Context(), "", raw)
			}
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().Uint32Var(&count, "count", 0, "Optional count carried in the init message")
	cmd.Flags().BoolVar(&selfTest, "self-test", false, "Remove the flag again after verifying it")
	sign.bind(cmd)
	return cmd
}

func newExecuteCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run an execute message against the contract",
	}

	var sign signer
	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove the flag (succeeds when it is already absent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := json.Marshal(contract.HandleMsg{Remove: &struct{}{}})
			if err != nil {
				return err
			}
			h, err := a.openHost(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			w, err := sign.wallet()
			if err != nil {
				return err
			}
			var resp contract.Response
			if w != nil {
				resp, err = h.vm.ExecuteSigned(cmd.Context(), execution.SignRequest(w, execution.EntryExecute, h.vm.Address(), raw))
			} else {
				resp, err = h.vm.Execute(cmd.Context(), "", raw)
			}
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	sign.bind(remove)
	cmd.AddCommand(remove)
	return cmd
}

func newQueryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a query message against the contract",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "read",
		Short: "Read the flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := json.Marshal(contract.QueryMsg{Read: &struct{}{}})
			if err != nil {
				return err
			}
			h, err := a.openHost(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			out, err := h.vm.Query(cmd.Context(), raw)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	})
	return cmd
}
