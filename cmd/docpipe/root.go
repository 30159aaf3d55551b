package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use: "docpipe",
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(filterCmd)
}
