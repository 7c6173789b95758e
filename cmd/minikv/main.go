// Command minikv is a thin CLI shell over engine.Engine. It owns none of
// the core semantics; spec.md scopes the CLI out of the engine itself.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minikv/minikv/config"
	"github.com/minikv/minikv/engine"
	"github.com/minikv/minikv/logging"
)

var (
	dataDir    string
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "minikv",
		Short: "An embedded, single-writer LSM key-value store.",
	}
	root.PersistentFlags().StringVar(&dataDir, "dir", "data", "data directory (WAL + SSTs live here)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug-level structured logging")

	root.AddCommand(putCmd(), getCmd(), delCmd(), flushCmd(), compactCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openEngine() (*engine.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(verbose)
	if err != nil {
		return nil, err
	}
	return engine.Open(dataDir, cfg, log)
}

func withEngine(run func(e *engine.Engine, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer func() { _ = e.Close() }()
		return run(e, args)
	}
}

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Write a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: withEngine(func(e *engine.Engine, args []string) error {
			if err := e.Put([]byte(args[0]), []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		}),
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(e *engine.Engine, args []string) error {
			v, ok, err := e.Get([]byte(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(not found)")
				os.Exit(1)
			}
			fmt.Println(string(v))
			return nil
		}),
	}
}

func delCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(e *engine.Engine, args []string) error {
			if err := e.Delete([]byte(args[0])); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		}),
	}
}

func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Force a MemTable flush checkpoint",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(e *engine.Engine, _ []string) error {
			if err := e.Flush(); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		}),
	}
}

func compactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Force full compaction",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(e *engine.Engine, _ []string) error {
			if err := e.Compact(); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		}),
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print a point-in-time snapshot of engine state",
		Args:  cobra.NoArgs,
		RunE: withEngine(func(e *engine.Engine, _ []string) error {
			s, err := e.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("keys(memtable)=%d memtable_ops=%d ssts=%d wal_bytes=%d\n",
				s.KeyCountEstimate, s.MemTableOps, s.SSTCount, s.WALBytes)
			return nil
		}),
	}
}

