package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nathoo/worldcore/loader"
)

var validateCmd = &cobra.Command{
	Use:   "validate [world_dir]",
	Short: "Load and validate a world without running it",
	Long: `Executes the layer files, compiles the declarations, and runs the full
validation pass. Exits non-zero if the world has any defect, printing every
problem found rather than just the first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := worldDir(args)
		if err != nil {
			return err
		}
		defs, err := loader.Load(dir)
		if err != nil {
			var ve *loader.ValidationError
			if errors.As(err, &ve) {
				for _, e := range ve.Errors {
					fmt.Println("error:", e)
				}
				for _, w := range ve.Warnings {
					fmt.Println("warning:", w)
				}
			}
			return fmt.Errorf("%s: invalid", dir)
		}
		fmt.Printf("%s: ok (%d definitions, %d instances, %d actions, %d statuses)\n",
			dir, len(defs.Definitions), len(defs.Instances), len(defs.Actions), len(defs.Statuses))
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [world_dir]",
	Short: "Summarize a world's definitions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := worldDir(args)
		if err != nil {
			return err
		}
		defs, err := loader.Load(dir)
		if err != nil {
			return err
		}

		fmt.Println(defs.World.Title)
		if defs.World.Description != "" {
			fmt.Println(defs.World.Description)
		}
		fmt.Printf("cascade limit: %d\n\n", defs.CascadeLimit())

		for _, id := range defs.DefOrder {
			def := defs.Definitions[id]
			fmt.Printf("definition %s %v\n", id, def.Types)
			keys := make([]string, 0, len(def.Props))
			for k := range def.Props {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				s := def.Props[k]
				fmt.Printf("  prop %s %s (default %v)\n", k, s.Type, s.Default)
			}
			keys = keys[:0]
			for k := range def.Computed {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  computed %s = %s\n", k, def.Computed[k].Formula)
			}
			for _, a := range def.Affordances {
				fmt.Printf("  affordance %s (cost %d)\n", a.Name, a.Cost)
			}
			for _, t := range def.Triggers {
				fmt.Printf("  trigger %s when %s\n", t.ID, t.Source)
			}
		}

		if len(defs.Actions) > 0 {
			fmt.Println()
			for _, a := range defs.Actions {
				params := make([]string, 0, len(a.Params))
				for _, p := range a.Params {
					if p.Type != "" {
						params = append(params, p.Name+":"+p.Type)
					} else {
						params = append(params, p.Name)
					}
				}
				fmt.Printf("action %s(%v) cost %d\n", a.Name, params, a.Cost)
			}
		}

		if len(defs.Statuses) > 0 {
			fmt.Println()
			names := make([]string, 0, len(defs.Statuses))
			for n := range defs.Statuses {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				st := defs.Statuses[n]
				fmt.Printf("status %s stacking=%s overlay=%v\n", n, st.Stacking, st.Overlay)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(infoCmd)
}
