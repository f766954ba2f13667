// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/article-engine/internal/session"
	"github.com/pdiddy/article-engine/pkg/types"
)

// --- progress subcommand ---

var progressCmd = &cobra.Command{
	Use:   "progress SESSION_ID",
	Short: "Show the progress of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgress,
}

func runProgress(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := openService(store).GetSessionProgress(context.Background(), args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}

	fmt.Printf("Session:   %s (v%d)\n", p.SessionID, p.Version)
	fmt.Printf("Status:    %s\n", p.Status)
	fmt.Printf("Sections:  %d of ~%d\n", p.CompletedSections, p.TotalSections)
	fmt.Printf("Words:     %d\n", p.TotalWordCount)
	if p.ErrorMessage != "" {
		fmt.Printf("Error:     %s\n", p.ErrorMessage)
	}
	return nil
}

// --- list subcommand ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	parent, _ := cmd.Flags().GetString("parent")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.List(context.Background(), session.ListOptions{
		ParentID: parent,
		Status:   types.SessionStatus(status),
		Limit:    limit,
	})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatList(sessions, jsonOutput)
}

func formatList(sessions []*types.GenerationSession, jsonOutput bool) error {
	if jsonOutput {
		progress := make([]types.Progress, len(sessions))
		for i, s := range sessions {
			progress[i] = types.ProgressOf(s)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(progress)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-7s  %-12s  %8s  %6s  %s\n",
		"Session", "Parent", "Version", "Status", "Sections", "Words", "Created")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
	for _, s := range sessions {
		parent := s.ParentID
		if len(parent) > 20 {
			parent = parent[:17] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-7d  %-12s  %8d  %6d  %s\n",
			s.ID, parent, s.Version, s.Status, s.CompletedSections, s.TotalWordCount,
			s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// --- show subcommand ---

var showCmd = &cobra.Command{
	Use:   "show SESSION_ID",
	Short: "Print the final article of a completed session",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	if sess.FinalArticle == nil {
		return fmt.Errorf("session %s has no article (status %s)", sess.ID, sess.Status)
	}
	fmt.Println(*sess.FinalArticle)
	return nil
}

// --- export subcommand ---

var exportCmd = &cobra.Command{
	Use:   "export SESSION_ID",
	Short: "Export a session and its transcript",
	Long: `Export writes the session record and the full conversation transcript,
including provider-authored reasoning blocks, to stdout as YAML or JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	switch format {
	case "yaml", "yml":
		return store.ExportYAML(ctx, args[0], os.Stdout)
	case "json":
		return store.ExportJSON(ctx, args[0], os.Stdout)
	default:
		return fmt.Errorf("unsupported format %q (use yaml or json)", format)
	}
}

// --- recover subcommand ---

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Fail sessions left running by a process that exited",
	Long: `Recover moves every session still marked orchestrating to failed. Run it
only when no other article-engine process is generating against the same
store. run and generate do the same first when given --recover.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := openService(store).RecoverInterrupted(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Recovered %d session(s).\n", n)
		return nil
	},
}

func init() {
	progressCmd.Flags().Bool("json", false, "output as JSON")

	listCmd.Flags().String("parent", "", "filter by parent document id")
	listCmd.Flags().String("status", "", "filter by status: initializing, orchestrating, completed, failed")
	listCmd.Flags().Int("limit", 0, "maximum sessions (0 = default 50, -1 = all)")
	listCmd.Flags().Bool("json", false, "output as JSON")

	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(recoverCmd)
}
