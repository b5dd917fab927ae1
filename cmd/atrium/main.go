package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atrium",
		Short: "Atrium catalog service",
		Long:  "Run the Atrium catalog service and its cache maintenance commands",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(cacheCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
