package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/curio-labs/curiobot/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "curiobotd",
		Short: "Curiobot daemon",
		Long:  "Curiobot daemon for scraping a knowledge base, embedding it and answering Slack queries",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(cli.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
