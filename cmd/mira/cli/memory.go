package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	recallLimit  int
	cleanupDays  int
	analyzeDays  int
	snapshotPath string
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage the memory system",
}

var rememberCmd = &cobra.Command{
	Use:   "remember [user-input] [ai-response]",
	Short: "Store a conversation turn directly",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withMemory(func(ctx cliContext) {
			result := ctx.mem.Store(rootContext(), args[0], args[1], nil)
			fmt.Printf("Stored as %s\n", result.ConversationID)
		})
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Retrieve the context bundle for a query",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withMemory(func(ctx cliContext) {
			bundle := ctx.mem.Retrieve(rootContext(), args[0], recallLimit)
			printJSON(bundle)
		})
	},
}

var contextCmd = &cobra.Command{
	Use:   "context [input]",
	Short: "Render the prompt-ready context block for an input",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withMemory(func(ctx cliContext) {
			block := ctx.mem.SmartContext(rootContext(), args[0])
			if block == "" {
				fmt.Println("(no relevant context)")
				return
			}
			fmt.Println(block)
		})
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show what the memory system has learned",
	Run: func(cmd *cobra.Command, args []string) {
		withMemory(func(ctx cliContext) {
			insights := ctx.mem.Insights(rootContext())
			if len(insights) == 0 {
				fmt.Println("Nothing notable yet. Keep chatting.")
				return
			}
			for _, line := range insights {
				fmt.Printf("- %s\n", line)
			}
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory statistics",
	Run: func(cmd *cobra.Command, args []string) {
		withMemory(func(ctx cliContext) {
			printJSON(ctx.mem.Stats(rootContext()))
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze conversation patterns",
	Run: func(cmd *cobra.Command, args []string) {
		withMemory(func(ctx cliContext) {
			printJSON(ctx.mem.AnalyzePatterns(rootContext(), analyzeDays))
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete conversation records older than --days",
	Run: func(cmd *cobra.Command, args []string) {
		withMemory(func(ctx cliContext) {
			removed, err := ctx.mem.Cleanup(rootContext(), cleanupDays)
			if err != nil {
				fmt.Printf("Cleanup failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Removed %d old conversations\n", removed)
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a diagnostics snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		withMemory(func(ctx cliContext) {
			path, err := ctx.mem.ExportSnapshot(rootContext(), snapshotPath)
			if err != nil {
				fmt.Printf("Export failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Snapshot written to %s\n", path)
		})
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List exported snapshots",
	Run: func(cmd *cobra.Command, args []string) {
		withMemory(func(ctx cliContext) {
			paths, err := ctx.mem.ListSnapshots()
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			if len(paths) == 0 {
				fmt.Println("(no snapshots)")
				return
			}
			for _, p := range paths {
				fmt.Println(p)
			}
		})
	},
}

func init() {
	RootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(rememberCmd, recallCmd, contextCmd, insightsCmd, statsCmd, analyzeCmd, cleanupCmd, exportCmd, snapshotsCmd)

	recallCmd.Flags().IntVar(&recallLimit, "limit", 5, "Maximum items per section")
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 90, "Delete conversations older than this many days")
	analyzeCmd.Flags().IntVar(&analyzeDays, "days", 30, "Analysis window in days")
	exportCmd.Flags().StringVar(&snapshotPath, "out", "", "Snapshot output path (default: timestamped file in data dir)")
}
