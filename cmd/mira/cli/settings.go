package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tnanh/mira/internal/memory"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage memory settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show current memory settings",
	Run: func(cmd *cobra.Command, args []string) {
		withMemory(func(ctx cliContext) {
			printJSON(ctx.mem.Settings())
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a memory setting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		patch, err := buildPatch(args[0], args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		withMemory(func(ctx cliContext) {
			if err := ctx.mem.UpdateSettings(patch); err != nil {
				fmt.Printf("Failed to update settings: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Setting saved: %s\n", args[0])
		})
	},
}

func buildPatch(key, value string) (memory.SettingsPatch, error) {
	var patch memory.SettingsPatch
	switch key {
	case "vector_similarity_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return patch, fmt.Errorf("%s needs a number: %w", key, err)
		}
		patch.VectorSimilarityThreshold = &f
	case "max_context_conversations":
		n, err := strconv.Atoi(value)
		if err != nil {
			return patch, fmt.Errorf("%s needs an integer: %w", key, err)
		}
		patch.MaxContextConversations = &n
	case "auto_extract_entities", "personality_learning_enabled",
		"knowledge_extraction_enabled", "semantic_clustering_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return patch, fmt.Errorf("%s needs true or false: %w", key, err)
		}
		switch key {
		case "auto_extract_entities":
			patch.AutoExtractEntities = &b
		case "personality_learning_enabled":
			patch.PersonalityLearningEnabled = &b
		case "knowledge_extraction_enabled":
			patch.KnowledgeExtractionEnabled = &b
		case "semantic_clustering_enabled":
			patch.SemanticClusteringEnabled = &b
		}
	default:
		return patch, fmt.Errorf("unknown setting %q", key)
	}
	return patch, nil
}

func init() {
	RootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
}

// cliContext bundles what a memory subcommand needs.
type cliContext struct {
	mem *memory.Orchestrator
}

// withMemory opens the orchestrator, runs fn and tears down cleanly.
func withMemory(fn func(cliContext)) {
	obs := newObserver()
	defer obs.Close()

	mem, err := openMemory(obs)
	if err != nil {
		fmt.Printf("Failed to open memory: %v\n", err)
		os.Exit(1)
	}
	defer mem.Close()

	fn(cliContext{mem: mem})
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
