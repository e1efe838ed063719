package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soden46/hyperlux-flagstore/wallet"
)

func newKeysCommand(_ *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the keys requests are signed with",
	}
	cmd.PersistentFlags().StringVar(&password, "password", "", "Keystore password")

	requirePassword := func() error {
		if password == "" {
			return errors.New("--password is required")
		}
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "new FILE",
			Short: "Generate a key and write it to an encrypted keystore",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := requirePassword(); err != nil {
					return err
				}
				w, err := wallet.GenerateWallet()
				if err != nil {
					return err
				}
				if err := w.SaveKeystore(args[0], password); err != nil {
					return fmt.Errorf("write keystore: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), w.Address)
				return err
			},
		},
		&cobra.Command{
			Use:   "show FILE",
			Short: "Print the address of a keystore",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := requirePassword(); err != nil {
					return err
				}
				w, err := wallet.LoadKeystore(args[0], password)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), w.Address)
				return err
			},
		},
	)
	return cmd
}
