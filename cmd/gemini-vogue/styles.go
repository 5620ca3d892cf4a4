package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fpang/gemini-vogue/internal/style"
)

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List the preset outfit styles",
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range style.Presets() {
			fmt.Printf("%-10s %s  %-14s %s\n", p.ID, p.Icon, p.Name, p.Prompt)
		}
	},
}

func init() {
	rootCmd.AddCommand(stylesCmd)
}
