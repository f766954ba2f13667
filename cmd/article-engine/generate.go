// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/article-engine/internal/broadcast"
	"github.com/pdiddy/article-engine/internal/outline"
	"github.com/pdiddy/article-engine/internal/session"
)

const defaultConcurrency = 2

// --- start subcommand ---

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Create a generation session and print its id",
	Long: `Start records a new session for a parent document and returns its id
without generating anything. Use run to generate it later. Outlines may be
plain text, Markdown, or a YAML brief; "-" reads from stdin.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	parent, _ := cmd.Flags().GetString("parent")
	path, _ := cmd.Flags().GetString("outline")
	if path == "" {
		return fmt.Errorf("--outline is required")
	}
	text, err := outline.Load(path, os.Stdin)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := openService(store).StartSession(context.Background(), parent, text)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

// --- run subcommand ---

var runCmd = &cobra.Command{
	Use:   "run SESSION_ID",
	Short: "Generate the article for an existing session",
	Long: `Run performs generation for a session created with start. The session
must still be initializing. Progress is streamed to the terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	ctx := context.Background()

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := recoverIfAsked(ctx, cmd, e); err != nil {
		return err
	}

	id := args[0]
	e.watch(id, broadcast.NewTerminalSink(os.Stdout, verbose))
	defer e.svc.Unregister(id)
	return e.svc.PerformGeneration(ctx, id)
}

// --- generate subcommand ---

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Start and generate one article per outline",
	Long: `Generate creates a session for each --outline under the same parent and
generates them concurrently. Each outline becomes a new version of the
parent's article. Progress for every session is streamed to the terminal.`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	parent, _ := cmd.Flags().GetString("parent")
	paths, _ := cmd.Flags().GetStringArray("outline")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	verbose, _ := cmd.Flags().GetBool("verbose")
	if len(paths) == 0 {
		return fmt.Errorf("provide at least one --outline")
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	outlines := make([]string, len(paths))
	for i, p := range paths {
		text, err := outline.Load(p, os.Stdin)
		if err != nil {
			return err
		}
		outlines[i] = text
	}

	ctx := context.Background()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := recoverIfAsked(ctx, cmd, e); err != nil {
		return err
	}

	terminal := broadcast.NewTerminalSink(os.Stdout, verbose && len(outlines) == 1)
	ids := make([]string, len(outlines))
	for i, text := range outlines {
		id, err := e.svc.StartSession(ctx, parent, text)
		if err != nil {
			return err
		}
		ids[i] = id
		e.watch(id, terminal)
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	failures := make([]error, len(ids))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			defer e.svc.Unregister(id)
			failures[i] = e.svc.PerformGeneration(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	printSummary(ctx, e.store, ids)
	if err := errors.Join(failures...); err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	return nil
}

// recoverIfAsked fails sessions left orchestrating when --recover is set.
// It must not run while another process generates against the same store.
func recoverIfAsked(ctx context.Context, cmd *cobra.Command, e *engine) error {
	if ok, _ := cmd.Flags().GetBool("recover"); !ok {
		return nil
	}
	_, err := e.svc.RecoverInterrupted(ctx)
	return err
}

func printSummary(ctx context.Context, store *session.Store, ids []string) {
	fmt.Fprintf(os.Stdout, "\n%-36s  %-7s  %-12s  %8s  %6s\n", "Session", "Version", "Status", "Sections", "Words")
	for _, id := range ids {
		sess, err := store.Get(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stdout, "%-36s  %v\n", id, err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-7d  %-12s  %8d  %6d\n",
			sess.ID, sess.Version, sess.Status, sess.CompletedSections, sess.TotalWordCount)
	}
}

func init() {
	startCmd.Flags().String("parent", "", "parent document id")
	startCmd.Flags().String("outline", "", "outline file (text, Markdown, or YAML brief; - for stdin)")

	runCmd.Flags().BoolP("verbose", "v", false, "stream generated text as it arrives")
	runCmd.Flags().Bool("recover", false, "first fail sessions left orchestrating by an exited process")

	generateCmd.Flags().String("parent", "", "parent document id")
	generateCmd.Flags().StringArray("outline", nil, "outline file; repeat for several articles")
	generateCmd.Flags().Int("concurrency", defaultConcurrency, "sessions generated at once")
	generateCmd.Flags().BoolP("verbose", "v", false, "stream generated text (single outline only)")
	generateCmd.Flags().Bool("recover", false, "first fail sessions left orchestrating by an exited process")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(generateCmd)
}
