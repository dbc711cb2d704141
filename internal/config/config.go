// Package config holds the CLI-level configuration shared by x86gen's
// subcommands: the output directory and the soft node-count limit that
// stands in for the original generator's RLIMIT_AS cap (spec 5).
package config

// Config is the resolved configuration for a single x86gen invocation.
type Config struct {
	// OutDir is where generate writes examples.list, examples-modrm.list,
	// and x86_64.trie.
	OutDir string
	// MaxNodes caps the reachable node count (spec 5's "virtual-memory
	// rlimit", reimplemented as an in-process counter since raw setrlimit
	// isn't portable Go). pipeline.Build checks it after the labeled trie
	// is built and again after the final DFA is built, returning an error
	// if either exceeds it; it does not stop a stage while it is running,
	// and the interner itself is not capped.
	MaxNodes int
}

// Default returns the configuration x86gen uses when no flags override it.
func Default() Config {
	return Config{
		OutDir:   ".",
		MaxNodes: 8_000_000,
	}
}
