package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nathoo/worldcore/engine"
	"github.com/nathoo/worldcore/loader"
	"github.com/nathoo/worldcore/world"
)

var rootCmd = &cobra.Command{
	Use:   "worldcore",
	Short: "A declarative simulation kernel",
	Long: `worldcore loads a typed entity world from layered Lua files and runs
it: actions, triggers, statuses, and events, all declared in config.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("world", "", "world directory (or WORLDCORE_WORLD)")
	rootCmd.PersistentFlags().String("actor", "", "actor instance id (default: first agent)")
	rootCmd.PersistentFlags().String("log", "warn", "log level: debug, info, warn, error")

	viper.SetEnvPrefix("WORLDCORE")
	viper.AutomaticEnv()
	viper.BindPFlag("world", rootCmd.PersistentFlags().Lookup("world"))
	viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
	viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))

	cobra.OnInitialize(setupLogging)
}

func setupLogging() {
	level := slog.LevelWarn
	switch viper.GetString("log") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// worldDir resolves the world directory from the positional arg, the
// --world flag, or the environment.
func worldDir(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if dir := viper.GetString("world"); dir != "" {
		return dir, nil
	}
	return "", fmt.Errorf("no world directory: pass [world_dir] or set WORLDCORE_WORLD")
}

// buildEngine loads a world directory and picks the acting entity: the
// --actor flag when set, otherwise the first instance whose definition
// carries the agent tag.
func buildEngine(args []string) (*engine.Engine, string, error) {
	dir, err := worldDir(args)
	if err != nil {
		return nil, "", err
	}
	defs, err := loader.Load(dir)
	if err != nil {
		return nil, "", err
	}
	eng, err := engine.New(defs)
	if err != nil {
		return nil, "", err
	}
	actor := viper.GetString("actor")
	if actor == "" {
		actor = firstAgent(eng.World)
	}
	if actor == "" {
		return nil, "", fmt.Errorf("no agent instance in world and no --actor given")
	}
	if _, ok := eng.World.Get(actor); !ok {
		return nil, "", fmt.Errorf("actor %q does not exist", actor)
	}
	return eng, actor, nil
}

func firstAgent(w *world.World) string {
	for _, id := range w.InstanceIDs() {
		if w.HasTag(id, "agent") {
			return id
		}
	}
	return ""
}
