// Command x86gen builds the DFA recognizing the NaCl x86-64 sandbox's
// permitted instruction encodings and writes it, alongside the
// cross-check instruction listings, to the current directory (spec 6.1).
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/petrhosek/x86-decoder/internal/cli"
)

func main() {
	if err := cli.Root().Execute(); err != nil {
		logrus.WithError(err).Error("x86gen failed")
		os.Exit(1)
	}
}
