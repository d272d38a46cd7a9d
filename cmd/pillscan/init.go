package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carepill/pillscan/internal/config"
	"github.com/carepill/pillscan/internal/home"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the pillscan home directory and default config",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		if h.ConfigExists() {
			fmt.Printf("Config already exists at %s\n", h.ConfigPath())
			return nil
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", h.ConfigPath())
		fmt.Printf("Place a catalog seed at %s to preload the medicine catalog.\n", h.CatalogSeedPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
