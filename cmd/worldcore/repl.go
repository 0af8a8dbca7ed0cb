package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nathoo/worldcore/cli"
	"github.com/nathoo/worldcore/tui"
)

var replCmd = &cobra.Command{
	Use:   "repl [world_dir]",
	Short: "Run a plain line-oriented session",
	Long: `Starts the read-eval-print loop against a loaded world. Reads commands
from stdin, so it also works for scripted playback:

	worldcore repl ./worlds/cellar --script walkthrough.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, actor, err := buildEngine(args)
		if err != nil {
			return err
		}
		c := cli.New(eng, actor)

		if script, _ := cmd.Flags().GetString("script"); script != "" {
			f, err := os.Open(script)
			if err != nil {
				return fmt.Errorf("opening script: %w", err)
			}
			defer f.Close()
			c.In = f
			c.EchoInput = true
		}

		c.Run()
		return nil
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui [world_dir]",
	Short: "Run a full-screen terminal session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, actor, err := buildEngine(args)
		if err != nil {
			return err
		}
		return tui.Run(eng, actor)
	},
}

func init() {
	replCmd.Flags().String("script", "", "play back commands from a file")
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(tuiCmd)
}
