package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xob0t/curve/pkg/config"
)

var (
	initOutput string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initOutput, "output", "o", config.DefaultPath, "output path")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")
}

func runInit(cmd *cobra.Command, args []string) error {
	if !initForce {
		if _, err := os.Stat(initOutput); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", initOutput)
		}
	}
	if err := config.Save(initOutput, cfg); err != nil {
		return err
	}
	fmt.Printf("Created: %s\n", initOutput)
	fmt.Println("Set [ai] key to use a real image service; without one the offline mock is used.")
	return nil
}
