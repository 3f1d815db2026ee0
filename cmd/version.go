package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show skillroute version and build information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(_ *cobra.Command, _ []string) error {
	info := version.Get()
	fmt.Printf("Version:    %s\n", info.Version)
	fmt.Printf("Commit:     %s\n", emptyAsNA(info.Commit))
	fmt.Printf("Build Date: %s\n", emptyAsNA(info.BuildDate))
	fmt.Printf("Go Version: %s\n", info.GoVersion)
	fmt.Printf("OS/Arch:    %s\n", info.Platform)
	return nil
}

func emptyAsNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
