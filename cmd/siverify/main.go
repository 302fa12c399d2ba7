// Command siverify is a demo driver for the verify package. It is not the
// canonical history loader or CLI surface described by spec.md (those are
// out of scope, specified only by interface — collab.HistoryLoader); it
// registers its one ad hoc JSON loader in a collab.Registry and looks it
// up by name rather than calling it directly, so the registry described by
// spec.md §1/§6 is actually exercised and not just declared. It exists to
// exercise Verify end to end for manual smoke-testing and for wiring
// cobra/viper the way the reference corpus does for command-line tools.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dbcop/siverify/collab"
	"github.com/dbcop/siverify/history"
	"github.com/dbcop/siverify/logging"
	"github.com/dbcop/siverify/verify"
)

// jsonEvent is the wire shape of one event in the demo history format. It is
// deliberately minimal — a real loader belongs in its own package, grounded
// on whatever wire format that system uses, and plugs into verify.Verify the
// same way this demo does.
type jsonEvent struct {
	Txn   int64  `json:"txn"`
	Write bool   `json:"write"`
	Key   string `json:"key"`
	Value int    `json:"value"`
}

type jsonSession struct {
	ID           int64       `json:"id"`
	Transactions []int64     `json:"transactions"`
	Events       []jsonEvent `json:"events"`
}

type jsonHistory struct {
	Sessions []jsonSession `json:"sessions"`
}

func loadDemoHistory(path string) (*history.History[string, int], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	var doc jsonHistory
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing history file: %w", err)
	}

	b := history.NewBuilder[string, int]()
	for _, s := range doc.Sessions {
		sess := b.Session(s.ID)
		txns := make(map[int64]*history.Transaction[string, int], len(s.Transactions))
		for _, id := range s.Transactions {
			txn, err := b.Transaction(sess, id)
			if err != nil {
				return nil, fmt.Errorf("session %d: %w", s.ID, err)
			}
			txns[id] = txn
		}
		for _, e := range s.Events {
			txn, ok := txns[e.Txn]
			if !ok {
				return nil, fmt.Errorf("session %d: event references unknown transaction %d", s.ID, e.Txn)
			}
			if e.Write {
				b.Write(txn, e.Key, e.Value)
			} else {
				b.Read(txn, e.Key, e.Value)
			}
		}
		for _, txn := range txns {
			if err := txn.Commit(); err != nil {
				return nil, fmt.Errorf("committing transaction %d: %w", txn.ID, err)
			}
		}
	}

	return b.Build(), nil
}

// jsonFileLoader adapts loadDemoHistory to collab.HistoryLoader, so this
// demo driver exercises the registry the way a real CLI would: look a
// loader up by name instead of calling a package function directly.
type jsonFileLoader struct {
	path string
}

func (l jsonFileLoader) LoadHistory() (*history.History[string, int], error) {
	return loadDemoHistory(l.path)
}

// defaultRegistry builds the collaborator registry this demo driver looks
// its loader up in. A real deployment would register its own loaders
// (DBCop binary log, Cobra binary log, ...) here too; this module only
// ships the one demo JSON loader.
func defaultRegistry(path string) *collab.Registry[string, int] {
	r := collab.NewRegistry[string, int]()
	_ = r.RegisterLoader(collab.Descriptor{
		Name:        "demo-json",
		Description: "ad hoc JSON history format read from the command-line path argument",
	}, jsonFileLoader{path: path})
	return r
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetDefault("verbose", false)
	v.SetDefault("no-coalesce", false)
	v.SetDefault("no-prune", false)
	v.SetDefault("dot", false)

	cmd := &cobra.Command{
		Use:   "siverify [history.json]",
		Short: "Check whether a JSON-encoded transaction history satisfies snapshot isolation",
		Args: func(cmd *cobra.Command, args []string) error {
			if list, _ := cmd.Flags().GetBool("list-collaborators"); list {
				return nil
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
				v.SetConfigFile(cfgFile)
				v.SetConfigType("yaml")
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config file: %w", err)
				}
			}

			if v.GetBool("list-collaborators") {
				for _, d := range defaultRegistry("").List("") {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", d.Name, d.Kind, d.Description)
				}
				return nil
			}

			level := logging.LogLevelInfo
			if v.GetBool("verbose") {
				level = logging.LogLevelDebug
			}
			log := logging.New(level, "siverify")

			registry := defaultRegistry(args[0])
			loader, ok := registry.Loader("demo-json")
			if !ok {
				return fmt.Errorf("no collaborator registered under %q", "demo-json")
			}
			h, err := loader.LoadHistory()
			if err != nil {
				return err
			}

			cfg := verify.DefaultConfig()
			cfg.CoalesceConstraints = !v.GetBool("no-coalesce")
			cfg.EnablePruning = !v.GetBool("no-prune")
			cfg.DotOutput = v.GetBool("dot")

			result, err := verify.Verify(h, cfg, log)
			if err != nil {
				return err
			}

			if result.Accepted {
				fmt.Fprintln(cmd.OutOrStdout(), "ACCEPT: history satisfies snapshot isolation")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "REJECT: history does not satisfy snapshot isolation")
			for _, txn := range result.Transactions() {
				fmt.Fprintf(cmd.OutOrStdout(), "  implicated transaction: %s\n", txn)
			}
			if result.DotOutput != "" {
				fmt.Fprintln(cmd.OutOrStdout(), result.DotOutput)
			}
			cmd.SilenceUsage = true
			os.Exit(1)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Bool("verbose", false, "enable debug logging")
	flags.Bool("no-coalesce", false, "generate one constraint per conflicting key instead of per conflicting transaction pair")
	flags.Bool("no-prune", false, "skip constraint pruning and defer everything to the SAT solver")
	flags.Bool("dot", false, "include a Graphviz dot rendering of a rejection witness")
	flags.String("config", "", "path to a YAML file overriding these flags (github.com/spf13/viper)")
	flags.Bool("list-collaborators", false, "list registered history loaders/transformers and exit")
	_ = v.BindPFlags(flags)

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
