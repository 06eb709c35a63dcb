package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"patternguard/internal/eval"
)

var (
	evalCorpus string
	evalFormat string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Measure detection accuracy against a labelled corpus",
	Long: `Run the detector across a corpus of labelled projects and report how
often the winning label matches the ground truth.

The corpus is a YAML or JSON file (or a directory of them) listing project
roots and the convention labels a reviewer assigned to each category.

Examples:
  patternguard eval --corpus=./corpus.yaml
  patternguard eval --corpus=./corpus/ --format=json`,
	Run: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalCorpus, "corpus", "", "Path to a corpus file or directory (required)")
	evalCmd.Flags().StringVar(&evalFormat, "format", "human", "Output format (human, json)")
	_ = evalCmd.MarkFlagRequired("corpus")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg := mustLoadConfig(cwd)
	logger := newLogger(evalFormat, cfg)

	s, cleanup := buildScanner(cwd, cfg, logger, true)
	defer cleanup()
	suite := eval.NewSuite(s, logger)

	info, err := os.Stat(evalCorpus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error accessing corpus: %v\n", err)
		os.Exit(1)
	}

	if info.IsDir() {
		entries, err := os.ReadDir(evalCorpus)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading corpus directory: %v\n", err)
			os.Exit(1)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !corpusFile(name) {
				continue
			}
			if err := suite.LoadCorpus(filepath.Join(evalCorpus, name)); err != nil {
				fmt.Fprintf(os.Stderr, "Error loading corpus %s: %v\n", name, err)
				os.Exit(1)
			}
		}
	} else {
		if err := suite.LoadCorpus(evalCorpus); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading corpus: %v\n", err)
			os.Exit(1)
		}
	}

	report, err := suite.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running evaluation: %v\n", err)
		os.Exit(1)
	}

	if evalFormat == "json" {
		out, err := report.JSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	} else {
		fmt.Print(report.FormatReport())
	}

	if report.FailedCases > 0 {
		os.Exit(1)
	}
}

func corpusFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".json")
}
