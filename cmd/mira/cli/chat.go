package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Run: func(cmd *cobra.Command, args []string) {
		runChat()
	},
}

func init() {
	RootCmd.AddCommand(chatCmd)
}

func runChat() {
	obs := newObserver()
	defer obs.Close()

	a, mem, err := newAssistant(obs)
	if err != nil {
		fmt.Printf("Failed to start assistant: %v\n", err)
		os.Exit(1)
	}
	defer mem.Close()

	fmt.Println("Mira is listening. Type /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			break
		}

		reply, err := a.Ask(rootContext(), input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("mira> %s\n", reply)
	}
}
