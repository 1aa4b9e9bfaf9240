package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/csflash/flashsync/internal/statestore"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Print the authorization URL to start a login",
		Long: `Prints the provider authorization URL. Open it in a browser, sign in,
and pass the code from the redirect back with the callback command. The serve
command exposes the same flow over HTTP, which completes without copy-pasting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(buildLogger(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.OutOrStdout(), a.tokens.AuthURL(uuid.NewString()))

			return nil
		},
	}
}

func newCallbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "callback <code>",
		Short: "Exchange an authorization code for tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(buildLogger(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.tokens.ExchangeCode(cmd.Context(), args[0]); err != nil {
				return err
			}

			if !flagQuiet {
				fmt.Fprintln(cmd.ErrOrStderr(), "Logged in.")
			}

			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard cached tokens and change cursors",
		Long: `Discards the cached token pair and every folder's change cursor.
The next sync after a fresh login re-enumerates each folder from scratch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(buildLogger(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()

			if err := a.tokens.Logout(ctx); err != nil {
				return err
			}

			// A new login may be a different account; stale cursors would
			// silently miss its files.
			for _, folder := range a.cfg.Sync.Folders {
				if err := a.store.Forget(ctx, statestore.DeltaKey(folder.Key)); err != nil {
					return err
				}
			}

			if !flagQuiet {
				fmt.Fprintln(cmd.ErrOrStderr(), "Logged out.")
			}

			return nil
		},
	}
}
