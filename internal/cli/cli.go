// Package cli assembles x86gen's cobra command tree: generate (the
// default, spec 6.1's no-flag build), verify (cross-check only), and
// stats (report build cost without writing output) — all three subcommands
// of SPEC_FULL.md §10's supplement over the distilled spec.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/petrhosek/x86-decoder/internal/config"
	"github.com/petrhosek/x86-decoder/internal/dfafile"
	"github.com/petrhosek/x86-decoder/internal/enc"
	"github.com/petrhosek/x86-decoder/internal/pipeline"
	"github.com/petrhosek/x86-decoder/internal/trie"
	"github.com/petrhosek/x86-decoder/internal/xcheck"
)

var log = logrus.StandardLogger()

// Root returns the x86gen command tree.
func Root() *cobra.Command {
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "x86gen",
		Short: "Build the NaCl x86-64 sandbox validator DFA",
	}
	root.PersistentFlags().StringVar(&cfg.OutDir, "out", cfg.OutDir, "output directory for generate")
	root.PersistentFlags().IntVar(&cfg.MaxNodes, "max-nodes", cfg.MaxNodes, "abort if the interned node count exceeds this")

	generate := generateCmd(&cfg)
	root.RunE = generate.RunE
	root.AddCommand(generate, verifyCmd(&cfg), statsCmd(&cfg))
	return root
}

func timedPhase(name string, fn func() error) error {
	start := time.Now()
	log.Infof("%s...", name)
	err := fn()
	log.WithField("elapsed", time.Since(start)).Infof("%s done", name)
	return err
}

func generateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Build the DFA and write examples.list, examples-modrm.list, x86_64.trie",
		RunE: func(cmd *cobra.Command, args []string) error {
			var built *pipeline.Built
			if err := timedPhase("Building trie", func() error {
				var err error
				built, err = pipeline.Build(*cfg)
				return err
			}); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"node_count": trie.NodeCount(built.Labeled),
				"size":       trie.Size(built.Labeled, false),
			}).Info("labeled trie built")

			if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
				return errors.Wrap(err, "x86gen: create output directory")
			}

			if err := writeList(cfg, "examples.list", built.TestSubset); err != nil {
				return err
			}
			if err := writeList(cfg, "examples-modrm.list", built.ModRMSubset); err != nil {
				return err
			}

			if err := runCrossCheck("examples.list", built.TestSubset); err != nil {
				return err
			}
			if err := runCrossCheck("examples-modrm.list", built.ModRMSubset); err != nil {
				return err
			}

			log.WithField("node_count", trie.NodeCount(built.DFA)).Info("final DFA built")

			path := filepath.Join(cfg.OutDir, "x86_64.trie")
			f, err := os.Create(path)
			if err != nil {
				return errors.Wrapf(err, "x86gen: create %s", path)
			}
			defer f.Close()
			if err := dfafile.WriteTrie(f, built.DFA); err != nil {
				return errors.Wrapf(err, "x86gen: write %s", path)
			}
			log.Infof("wrote %s", path)
			return nil
		},
	}
}

func verifyCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run the cross-check harness without writing any output file",
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := pipeline.Build(*cfg)
			if err != nil {
				return err
			}
			if err := runCrossCheck("examples.list", built.TestSubset); err != nil {
				return err
			}
			return runCrossCheck("examples-modrm.list", built.ModRMSubset)
		},
	}
}

func statsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report build cost (node counts, accepted-language size) without writing output",
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := pipeline.Build(*cfg)
			if err != nil {
				return err
			}
			fmt.Printf("labeled trie:  %d nodes, %d accepted strings (wildcards collapsed)\n",
				trie.NodeCount(built.Labeled), trie.Size(built.Labeled, false))
			fmt.Printf("final DFA:     %d nodes, %d accepted strings (wildcards expanded)\n",
				trie.NodeCount(built.DFA), trie.Size(built.DFA, true))
			return nil
		},
	}
}

func writeList(cfg *config.Config, name string, root *trie.Node) error {
	path := filepath.Join(cfg.OutDir, name)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "x86gen: create %s", path)
	}
	defer f.Close()
	if err := enc.WriteInstructionList(f, root); err != nil {
		return errors.Wrapf(err, "x86gen: write %s", path)
	}
	log.Infof("wrote %s", path)
	return nil
}

func runCrossCheck(label string, root *trie.Node) error {
	pairs := xcheck.FromEncPairs(enc.GetAll(root))
	mismatches, err := xcheck.Run(pairs)
	if err != nil {
		return errors.Wrapf(err, "x86gen: cross-check %s", label)
	}
	for _, m := range mismatches {
		log.WithFields(logrus.Fields{
			"bytes": fmt.Sprintf("% x", m.Bytes),
			"want":  m.Want,
			"got":   m.Got,
		}).Warnf("%s: cross-check mismatch", label)
	}
	log.WithField("mismatches", len(mismatches)).Infof("%s: cross-check complete", label)
	return nil
}
