package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gocardgate/cardid"
	"gocardgate/cardstore"
)

type app struct {
	dbPath string
	seed   bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "gocardgate-cards",
		Short:         "Manage gocardgate cards and access logs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "./data/gocardgate.db", "Card database file")
	root.PersistentFlags().BoolVar(&a.seed, "seed", true, "Seed default cards into an empty database")

	root.AddCommand(
		a.listCmd(),
		a.addCmd(),
		a.deleteCmd(),
		a.updateCmd(),
		a.logsCmd(),
	)
	return root
}

// withStore opens the database for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(cardstore.Store) error) error {
	s, err := cardstore.Open(ctx, cardstore.Config{Path: a.dbPath, Seed: a.seed})
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func status(authorized bool) string {
	if authorized {
		return "Authorized"
	}
	return "Denied"
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s cardstore.Store) error {
				cards, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CARD ID\tNAME\tSTATUS")
				for _, c := range cards {
					fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, status(c.Authorized))
				}
				return w.Flush()
			})
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var deny bool
	cmd := &cobra.Command{
		Use:   "add <card-id> <name>",
		Short: "Add a card (authorized unless --deny)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cardid.Parse(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s cardstore.Store) error {
				_, err := s.Add(cmd.Context(), cardstore.Card{ID: id, Name: args[1], Authorized: !deny})
				if errors.Is(err, cardstore.ErrExists) {
					return fmt.Errorf("card %s already exists", id)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s - %s (%s)\n", id, args[1], status(!deny))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deny, "deny", false, "Add the card as denied")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <card-id>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cardid.Parse(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s cardstore.Store) error {
				if err := s.Delete(cmd.Context(), id); err != nil {
					if errors.Is(err, cardstore.ErrNotFound) {
						return fmt.Errorf("card %s not found", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				return nil
			})
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	var authorize, deny bool
	cmd := &cobra.Command{
		Use:   "update <card-id> --authorize|--deny",
		Short: "Change a card's authorization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !authorize && !deny {
				return errors.New("specify --authorize or --deny")
			}
			id, err := cardid.Parse(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s cardstore.Store) error {
				c, err := s.SetAuthorized(cmd.Context(), id, authorize)
				if errors.Is(err, cardstore.ErrNotFound) {
					return fmt.Errorf("card %s not found", id)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s\n", c.ID, status(c.Authorized))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&authorize, "authorize", false, "Authorize the card")
	cmd.Flags().BoolVar(&deny, "deny", false, "Deny the card")
	cmd.MarkFlagsMutuallyExclusive("authorize", "deny")
	return cmd
}

func (a *app) logsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show access attempts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s cardstore.Store) error {
				events, err := s.RecentAccess(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printLogs(cmd.OutOrStdout(), events)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many entries (0 = all)")
	return cmd
}

func printLogs(out io.Writer, events []cardstore.AccessEvent) error {
	if len(events) == 0 {
		fmt.Fprintln(out, "No access logs yet.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCARD ID\tSTATUS\tREMOTE")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev.At.Local().Format(time.DateTime), ev.CardID, status(ev.Authorized), ev.Remote)
	}
	return w.Flush()
}
