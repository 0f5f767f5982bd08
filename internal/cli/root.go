// Package cli is the dubverse command-line front end (spec §10.2): a
// cobra command tree over the same internal/app.App wiring the
// control-plane HTTP server uses. Most commands here have a counterpart
// under internal/httpserver's /commands/ surface; `version`, `serve` and
// `dub run` have none, `dub align` and `dub compose` share the single
// run_alignment_and_compose endpoint, and `dub cancel` only points at
// /commands/cancel_dubbing.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leica1994/dubverse/internal/app"
	"github.com/leica1994/dubverse/internal/dubconfig"
	"github.com/leica1994/dubverse/internal/events"
	"github.com/leica1994/dubverse/internal/project"
)

// Version is set by the build (ldflags) or left at "dev".
var Version = "dev"

var (
	flagDataDir    string
	flagConfigFile string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "dubverse",
	Short: "Resumable video dubbing: translation, TTS, and audio alignment",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dubverse %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default: ~/.local/share/dubverse)")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Bootstrap YAML config file (default: {data-dir}/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Stream structured progress events to stderr as JSON lines")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dubCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openApp resolves the data directory, bootstraps the config file, and
// constructs the App every command operates against.
func openApp() (*app.App, error) {
	dataDir, err := project.ResolveDataDir(flagDataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	var emitter events.Emitter = events.NopEmitter{}
	if flagVerbose {
		emitter = events.NewJSONEmitter(os.Stderr)
	}

	a, err := app.New(dataDir, emitter)
	if err != nil {
		return nil, err
	}

	configPath := flagConfigFile
	if configPath == "" {
		configPath = dataDir + "/config.yaml"
	}
	cfgFile, err := dubconfig.Load(configPath)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := dubconfig.Bootstrap(a.Store, cfgFile); err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}
