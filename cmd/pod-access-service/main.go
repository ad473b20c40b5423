package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "pod-access-service",
		Short: "Workspace pod booking and access provisioning service",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newTokenCommand())
	root.AddCommand(newSeedPodCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
