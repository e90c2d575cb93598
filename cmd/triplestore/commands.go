package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wbrown/janus-triplestore/triplestore"
	"github.com/wbrown/janus-triplestore/triplestore/layer"
	"github.com/wbrown/janus-triplestore/triplestore/storage"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <database>",
		Short: "Create an empty database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(s *storage.Store) error {
				if _, err := s.Create(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s created database %s\n", color.GreenString("✓"), args[0])
				return nil
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List databases with their head and version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(s *storage.Store) error {
				names, err := s.Databases()
				if err != nil {
					return err
				}

				labels := make([]storage.Label, 0, len(names))
				for _, name := range names {
					db, err := s.Open(name)
					if err != nil {
						return err
					}
					if db == nil {
						// deleted since listing
						continue
					}
					label, err := db.Label()
					if err != nil {
						return err
					}
					labels = append(labels, label)
				}
				fmt.Fprint(cmd.OutOrStdout(), formatLabels(labels))
				return nil
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <database>",
		Short: "Delete a database label; its layers are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(s *storage.Store) error {
				deleted, err := s.Delete(args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("database %q does not exist", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s deleted database %s\n", color.GreenString("✓"), args[0])
				return nil
			})
		},
	}
}

// editOptions are shared by add and remove
type editOptions struct {
	value   bool
	file    string
	retries int
}

func (e *editOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&e.value, "value", false, "treat the object as a value instead of a node")
	cmd.Flags().StringVarP(&e.file, "file", "f", "", "read triples from a file, one per line (- for stdin)")
	cmd.Flags().IntVar(&e.retries, "retries", 10, "attempts to rebuild when another writer moves the head")
}

// triples collects the triples named on the command line and in --file
func (e *editOptions) triples(cmd *cobra.Command, args []string) ([]triplestore.StringTriple, error) {
	if e.retries < 0 {
		return nil, fmt.Errorf("--retries must not be negative, got %d", e.retries)
	}
	var triples []triplestore.StringTriple
	switch len(args) {
	case 0:
	case 3:
		if e.value {
			triples = append(triples, triplestore.NewValueTriple(args[0], args[1], args[2]))
		} else {
			triples = append(triples, triplestore.NewNodeTriple(args[0], args[1], args[2]))
		}
	default:
		return nil, fmt.Errorf("expected subject predicate object, got %d arguments", len(args))
	}

	if e.file != "" {
		in := cmd.InOrStdin()
		if e.file != "-" {
			f, err := os.Open(e.file)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			in = f
		}
		more, err := ReadTriples(in)
		if err != nil {
			return nil, err
		}
		triples = append(triples, more...)
	}

	if len(triples) == 0 {
		return nil, fmt.Errorf("no triples given")
	}
	return triples, nil
}

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	edit := &editOptions{}
	cmd := &cobra.Command{
		Use:   "add <database> [subject predicate object]",
		Short: "Add triples in a new layer on top of the head",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			triples, err := edit.triples(cmd, args[1:])
			if err != nil {
				return err
			}
			return opts.withStore(cmd, func(s *storage.Store) error {
				return runEdit(cmd, s, args[0], edit.retries, func(b *layer.Builder) (int, error) {
					changed := 0
					for _, t := range triples {
						added, err := b.AddStringTriple(t)
						if err != nil {
							return 0, err
						}
						if added {
							changed++
						}
					}
					return changed, nil
				})
			})
		},
	}
	edit.bind(cmd)
	return cmd
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	edit := &editOptions{}
	cmd := &cobra.Command{
		Use:   "remove <database> [subject predicate object]",
		Short: "Remove triples in a new layer on top of the head",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			triples, err := edit.triples(cmd, args[1:])
			if err != nil {
				return err
			}
			return opts.withStore(cmd, func(s *storage.Store) error {
				return runEdit(cmd, s, args[0], edit.retries, func(b *layer.Builder) (int, error) {
					changed := 0
					for _, t := range triples {
						removed, err := b.RemoveStringTriple(t)
						if err != nil {
							return 0, err
						}
						if removed {
							changed++
						}
					}
					return changed, nil
				})
			})
		},
	}
	edit.bind(cmd)
	return cmd
}

// runEdit stages changes on the current head and moves the head to the
// result, rebuilding from the new head whenever another writer wins.
func runEdit(cmd *cobra.Command, s *storage.Store, name string, retries int, stage func(*layer.Builder) (int, error)) error {
	db, err := openDatabase(s, name)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	for attempt := 0; attempt <= retries; attempt++ {
		head, err := db.Head()
		if err != nil {
			return err
		}
		b := s.CreateBaseLayer()
		if head != nil {
			b = head.OpenWrite()
		}

		changed, err := stage(b)
		if err != nil {
			return err
		}
		if changed == 0 {
			fmt.Fprintf(out, "%s no changes to %s\n", color.YellowString("-"), name)
			return nil
		}

		l, err := b.Commit()
		if err != nil {
			return err
		}
		ok, err := db.SetHead(l)
		if err != nil {
			return err
		}
		if ok {
			label, err := db.Label()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s: layer %s (+%d -%d), version %d\n",
				color.GreenString("✓"), name, l.Name(), len(l.Additions()), len(l.Removals()), label.Version)
			return nil
		}
	}
	return fmt.Errorf("head of %q kept moving; gave up after %d attempts", name, retries+1)
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	var layerName string
	var withIds bool
	cmd := &cobra.Command{
		Use:   "show <database>",
		Short: "Print the triples visible in the head or a given layer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(s *storage.Store) error {
				l, err := resolveLayer(s, args[0], layerName)
				if err != nil {
					return err
				}
				if l == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "_%s has no head_\n", args[0])
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), formatTriples(l, withIds))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&layerName, "layer", "l", "", "show this layer instead of the head")
	cmd.Flags().BoolVar(&withIds, "ids", false, "include identifiers")
	return cmd
}

// NewLogCommand creates the log command.
func NewLogCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log <database>",
		Short: "Print the head layer and its ancestors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(s *storage.Store) error {
				db, err := openDatabase(s, args[0])
				if err != nil {
					return err
				}
				history, err := db.History()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), formatHistory(history))
				return nil
			})
		},
	}
}

// resolveLayer returns the named layer, or the database head when name is empty
func resolveLayer(s *storage.Store, database, name string) (*layer.Layer, error) {
	if name == "" {
		db, err := openDatabase(s, database)
		if err != nil {
			return nil, err
		}
		return db.Head()
	}

	n, err := layer.ParseName(name)
	if err != nil {
		return nil, fmt.Errorf("invalid layer name %q: %w", name, err)
	}
	l, err := s.Layer(n)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("layer %s does not exist", name)
	}
	return l, nil
}
