package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bytecast/jtc/internal/config"
	"github.com/bytecast/jtc/internal/jtcerr"
	"github.com/bytecast/jtc/internal/pipeline"
)

var (
	inputRoot         string
	outputRoot        string
	entryClasses      []string
	providedByRuntime []string
	preserveUnreachable bool
	abiVersion        string
	elideDeadCode     bool
	emitAssertions    bool
	tmpDir            string
	configPath        string
)

// runTranspile loads the config file first, as the base layer, then
// applies only the flags the user actually set on top of it — so a config
// file can supply defaults without a flag's cobra zero-value silently
// overwriting them, matching "merged beneath flag values."
func runTranspile(cmd *cobra.Command, args []string) {
	cfg := &config.Config{ABIVersion: "v1.1.0", ElideDeadCode: true}
	if err := cfg.LoadOverlay(configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputRoot = inputRoot
	}
	if flags.Changed("output") {
		cfg.OutputRoot = outputRoot
	}
	if flags.Changed("entry") {
		cfg.EntryClasses = entryClasses
	}
	if flags.Changed("provided-by-runtime") {
		cfg.ProvidedByRuntime = providedByRuntime
	}
	if flags.Changed("preserve-unreachable") {
		cfg.PreserveUnreachable = preserveUnreachable
	}
	if flags.Changed("abi") {
		cfg.ABIVersion = abiVersion
	}
	if flags.Changed("elide-dead-code") {
		cfg.ElideDeadCode = elideDeadCode
	}
	if flags.Changed("emit-assertions") {
		cfg.EmitAssertions = emitAssertions
	}
	if flags.Changed("tmp-dir") {
		cfg.TempDir = tmpDir
	}

	log := logrus.New()
	p := pipeline.New(cfg, log)
	if err := p.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(jtcerr.ExitCodeFor(err))
	}
}

func main() {
	transpileCmd := &cobra.Command{
		Use:   "transpile",
		Short: "Translate a closed set of VM-bytecode classes into native-language translation units",
		Run:   runTranspile,
	}
	transpileCmd.Flags().StringVar(&inputRoot, "input", "", "input root: a directory or archive of class files")
	transpileCmd.Flags().StringVar(&outputRoot, "output", "", "output root for generated translation units")
	transpileCmd.Flags().StringArrayVar(&entryClasses, "entry", nil, "entry class, driving reachability (repeatable)")
	transpileCmd.Flags().StringArrayVar(&providedByRuntime, "provided-by-runtime", nil, "class name resolved opaquely by the target runtime (repeatable)")
	transpileCmd.Flags().BoolVar(&preserveUnreachable, "preserve-unreachable", false, "emit classes unreachable from any entry class")
	transpileCmd.Flags().StringVar(&abiVersion, "abi", "v1.1.0", "target runtime ABI version")
	transpileCmd.Flags().BoolVar(&elideDeadCode, "elide-dead-code", true, "elide dead assignments during Lower")
	transpileCmd.Flags().BoolVar(&emitAssertions, "emit-assertions", false, "emit runtime assertions for invariants the translator already checked statically")
	transpileCmd.Flags().StringVar(&tmpDir, "tmp-dir", "", "staging directory for atomic output writes (defaults to os.MkdirTemp)")
	transpileCmd.Flags().StringVar(&configPath, "config", "", "JSON config file, overlaid beneath flag values")

	rootCmd := &cobra.Command{
		Use:   "jtc",
		Short: "jtc translates closed VM-bytecode programs into native-language translation units",
	}
	rootCmd.AddCommand(transpileCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
