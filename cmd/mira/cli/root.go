package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	ciMode       bool
	providerType string
	modelName    string
	dataDir      string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "mira",
	Short: "Personal AI assistant with layered long-term memory",
	Long: `Mira is a local-first assistant that remembers. Every conversation is
indexed for semantic recall, mined for entities and relationships, and used
to build a picture of how you communicate.`,
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Ask a single question",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAsk(args[0])
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(askCmd)
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&ciMode, "ci", false, "JSON log output, non-interactive")
	RootCmd.PersistentFlags().StringVarP(&providerType, "provider", "p", "", "AI provider (ollama, openai, gemini, stub)")
	RootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Model name (default depends on provider)")
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Memory data directory (default ~/.mira/memory)")
}

func runAsk(message string) {
	obs := newObserver()
	defer obs.Close()

	a, mem, err := newAssistant(obs)
	if err != nil {
		fmt.Printf("Failed to start assistant: %v\n", err)
		os.Exit(1)
	}
	defer mem.Close()

	reply, err := a.Ask(rootContext(), message)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}
