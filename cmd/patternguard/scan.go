package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"patternguard/internal/evidence"
	"patternguard/internal/pgerrors"
	"patternguard/internal/scanner"
)

var (
	scanFormat      string
	scanMaxFiles    int
	scanTimeout     time.Duration
	scanConcurrency int
	scanExclude     []string
	scanNoCache     bool
	scanVerbose     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [root]",
	Short: "Detect the conventions a project follows",
	Long: `Scan a project and report the detected convention for each category
(authentication, API responses, error handling), with confidence and evidence.

Examples:
  patternguard scan                      # Scan the current directory
  patternguard scan ./api --format=json  # Machine-readable output
  patternguard scan --exclude='gen/**'   # Skip generated code`,
	Args: cobra.MaximumNArgs(1),
	Run:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "human", "Output format (human, json)")
	scanCmd.Flags().IntVar(&scanMaxFiles, "max-files", 0, "Override the file ceiling")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "Override the scan deadline (e.g. 45s)")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "Extraction workers (default: one per CPU)")
	scanCmd.Flags().StringSliceVar(&scanExclude, "exclude", nil, "Glob patterns to skip, relative to the root")
	scanCmd.Flags().BoolVar(&scanNoCache, "no-cache", false, "Skip the persistent extraction cache")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "Show evidence for every verdict")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) {
	root := resolveRoot(args)
	cfg := mustLoadConfig(root)
	logger := newLogger(scanFormat, cfg)

	s, cleanup := buildScanner(root, cfg, logger, scanNoCache)
	defer cleanup()

	pc, err := s.Scan(context.Background(), root)
	if err != nil {
		printScanError(err)
		os.Exit(1)
	}

	if scanFormat == "json" {
		out, err := json.MarshalIndent(pc, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Print(formatContext(pc, scanVerbose))
}

func printScanError(err error) {
	var scanErr *pgerrors.ScanError
	if errors.As(err, &scanErr) {
		fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", scanErr.Code, scanErr.Message)
		for _, fix := range scanErr.SuggestedFixes {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", fix.Description)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// formatContext renders a scan result for humans.
func formatContext(pc *scanner.ProjectContext, verbose bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Project: %s\n", pc.Root)
	if pc.Meta.Language != "" {
		fmt.Fprintf(&sb, "Stack:   %s", pc.Meta.Language)
		if pc.Meta.Framework != "" {
			fmt.Fprintf(&sb, " / %s", pc.Meta.Framework)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Scanned: %d files in %v", pc.FilesScanned, pc.Duration.Round(time.Millisecond))
	if pc.Partial {
		sb.WriteString(" (partial)")
	}
	sb.WriteString("\n\n")

	for _, cat := range evidence.Categories() {
		v := pc.Verdicts[cat]
		fmt.Fprintf(&sb, "%-15s %-22s confidence %3d (%s)\n", cat, v.Label, v.Confidence, v.Tier)
		if verbose {
			for _, ev := range v.Evidence {
				fmt.Fprintf(&sb, "    %s:%d  %s\n", ev.File, ev.Line, ev.Excerpt)
			}
			for _, r := range v.Rejected {
				fmt.Fprintf(&sb, "    rejected %s (confidence %d, %d items)\n", r.Label, r.Confidence, r.EvidenceCount)
			}
		}
	}

	if len(pc.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, w := range pc.Warnings {
			fmt.Fprintf(&sb, "  - %s\n", w)
		}
	}
	return sb.String()
}
