package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/soden46/hyperlux-flagstore/contract"
	"github.com/soden46/hyperlux-flagstore/storage"
)

// newDemoCommand walks the flag through its whole lifecycle on an in-memory
// backend: instantiate, read, remove, read again.
func newDemoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run instantiate, read, remove, read on an in-memory backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			cfg.Backend = storage.BackendMemory
			cfg.SelfTest = false
			cfg.WASMPath = ""
			cfg.P2P = false

			h, err := a.openHost(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			read, err := json.Marshal(contract.QueryMsg{Read: &struct{}{}})
			if err != nil {
				return err
			}
			remove, err := json.Marshal(contract.HandleMsg{Remove: &struct{}{}})
			if err != nil {
				return err
			}

			if _, err := h.vm.Instantiate(ctx, "", []byte(`{"count":null}`)); err != nil {
				return err
			}
			fmt.Fprintln(out, "instantiate: ok")

			val, err := h.vm.Query(ctx, read)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "read: %s\n", val)

			resp, err := h.vm.Execute(ctx, "", remove)
			if err != nil {
				return err
			}
			for _, attr := range resp.Log {
				fmt.Fprintf(out, "remove: %s=%s\n", attr.Key, attr.Value)
			}

			_, err = h.vm.Query(ctx, read)
			if !errors.Is(err, contract.ErrKeyRemoved) {
				return fmt.Errorf("read after remove: want %q, got %v", contract.ErrKeyRemoved, err)
			}
			fmt.Fprintf(out, "read: %v\n", err)

			return printCalls(out, h.registry)
		},
	}
}

func printCalls(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		if !strings.HasSuffix(mf.GetName(), "calls_total") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			lines = append(lines, fmt.Sprintf("calls{%s} %g", strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
