package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leica1994/dubverse/internal/cancel"
	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/dubbing"
	"github.com/leica1994/dubverse/internal/dubverrs"
	"github.com/leica1994/dubverse/internal/project"
	"github.com/leica1994/dubverse/internal/subtitle"
	"github.com/leica1994/dubverse/internal/translate"
	"github.com/leica1994/dubverse/internal/ttsprovider"
)

var dubCmd = &cobra.Command{
	Use:   "dub",
	Short: "Drive the dubbing stage machine (preprocess, media, reference, tts, alignment, compose)",
}

var (
	flagVideoPath       string
	flagSubtitlesPath   string
	flagReferenceMode   string
	flagReferenceAudio  string
	flagJobTtsPlugin    string
	flagJobID           string
	flagAiConfigID      string
	flagTtsPluginID     string
	flagConcurrentLimit int64
	flagRateLimit       float64
	flagTotalDurationMs int64
)

var dubInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a dubbing job from a video and a subtitles file",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if flagVideoPath == "" || flagSubtitlesPath == "" {
			return fmt.Errorf("--video and --subtitles are required")
		}

		dirs, err := project.New(a.DataDir, project.Stem(flagVideoPath))
		if err != nil {
			return err
		}
		items, err := subtitle.LoadFile(flagSubtitlesPath)
		if err != nil {
			return err
		}
		if err := subtitle.Save(dirs.ProjectDir, items); err != nil {
			return err
		}
		if err := project.DiscardCache(dirs.CacheDir); err != nil {
			return err
		}

		mode := dbstore.ReferenceMode(flagReferenceMode)
		if mode == "" {
			mode = dbstore.ReferenceClone
		}

		job := &dbstore.Job{
			ID:                 uuid.NewString(),
			ProjectDir:         dirs.ProjectDir,
			VideoPath:          flagVideoPath,
			SubtitleCount:      len(items),
			ReferenceMode:      mode,
			ReferenceAudioPath: flagReferenceAudio,
			TtsPluginID:        flagJobTtsPlugin,
			Status:             dbstore.JobPending,
		}
		if err := a.Store.CreateJob(job); err != nil {
			return err
		}
		fmt.Printf("job created: %s\nproject dir: %s\n", job.ID, job.ProjectDir)
		return nil
	},
}

var dubPreprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Run the preprocess stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		job, err := requireJob(a.Store, flagJobID)
		if err != nil {
			return err
		}
		cfg, err := resolveAiConfig(a.Store, flagAiConfigID)
		if err != nil {
			return err
		}
		items, err := subtitle.Load(job.ProjectDir)
		if err != nil {
			return err
		}
		client := translate.NewClient(cfg, a.Clients)
		return a.Orchestrator.Preprocess(cmd.Context(), job, subtitleInputs(items), client, cfg, nil)
	},
}

var dubMediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Run the media separation stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		job, err := requireJob(a.Store, flagJobID)
		if err != nil {
			return err
		}
		return a.Orchestrator.Media(cmd.Context(), job, nil)
	},
}

var dubReferenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Run the reference audio stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		job, err := requireJob(a.Store, flagJobID)
		if err != nil {
			return err
		}
		return a.Orchestrator.Reference(cmd.Context(), job, nil)
	},
}

var dubTtsCmd = &cobra.Command{
	Use:   "tts",
	Short: "Run the TTS generation stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		job, err := requireJob(a.Store, flagJobID)
		if err != nil {
			return err
		}

		pluginID := flagTtsPluginID
		if pluginID == "" {
			pluginID = job.TtsPluginID
		}
		plugin, err := a.Store.GetTtsPlugin(pluginID)
		if err != nil {
			return err
		}
		if plugin == nil {
			return fmt.Errorf("tts plugin %q not found", pluginID)
		}
		provider, err := ttsprovider.Build(*plugin, a.Clients)
		if err != nil {
			return err
		}
		concurrentLimit := flagConcurrentLimit
		if concurrentLimit <= 0 {
			concurrentLimit = 2
		}

		flag := cancel.New()
		installInterruptHandler(cmd.Context(), flag)
		return a.Orchestrator.TTS(cmd.Context(), job, provider, plugin.ID, concurrentLimit, flagRateLimit, flag)
	},
}

var dubAlignCmd = &cobra.Command{
	Use:   "align",
	Short: "Run the alignment stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		job, err := requireJob(a.Store, flagJobID)
		if err != nil {
			return err
		}
		return a.Orchestrator.Alignment(cmd.Context(), job, flagTotalDurationMs, nil)
	},
}

var dubComposeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Run the compose stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		job, err := requireJob(a.Store, flagJobID)
		if err != nil {
			return err
		}
		return a.Orchestrator.Compose(cmd.Context(), job, nil)
	},
}

var dubRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order, starting from wherever the job last stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		job, err := requireJob(a.Store, flagJobID)
		if err != nil {
			return err
		}
		cfg, err := resolveAiConfig(a.Store, flagAiConfigID)
		if err != nil {
			return err
		}
		items, err := subtitle.Load(job.ProjectDir)
		if err != nil {
			return err
		}

		pluginID := flagTtsPluginID
		if pluginID == "" {
			pluginID = job.TtsPluginID
		}
		plugin, err := a.Store.GetTtsPlugin(pluginID)
		if err != nil {
			return err
		}
		if plugin == nil {
			return fmt.Errorf("tts plugin %q not found", pluginID)
		}
		provider, err := ttsprovider.Build(*plugin, a.Clients)
		if err != nil {
			return err
		}
		concurrentLimit := flagConcurrentLimit
		if concurrentLimit <= 0 {
			concurrentLimit = 2
		}

		flag := cancel.New()
		installInterruptHandler(cmd.Context(), flag)

		in := dubbing.RunInputs{
			Subtitles:          subtitleInputs(items),
			PreprocessClient:   translate.NewClient(cfg, a.Clients),
			AiConfig:           cfg,
			TtsProvider:        provider,
			TtsConfigID:        plugin.ID,
			TtsConcurrentLimit: concurrentLimit,
			TtsRateLimit:       flagRateLimit,
			TotalDurationMs:    flagTotalDurationMs,
		}
		return a.Orchestrator.Run(cmd.Context(), job, in, flag)
	},
}

var dubResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Rewind every stage back to pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		job, err := requireJob(a.Store, flagJobID)
		if err != nil {
			return err
		}
		return a.Orchestrator.Reset(job)
	},
}

func init() {
	dubInitCmd.Flags().StringVar(&flagVideoPath, "video", "", "Source video path")
	dubInitCmd.Flags().StringVar(&flagSubtitlesPath, "subtitles", "", "Subtitles file (.json or .srt)")
	dubInitCmd.Flags().StringVar(&flagReferenceMode, "reference-mode", "clone", "Reference audio mode: clone, custom, none")
	dubInitCmd.Flags().StringVar(&flagReferenceAudio, "reference-audio", "", "Path to a custom reference audio clip (reference-mode=custom)")
	dubInitCmd.Flags().StringVar(&flagJobTtsPlugin, "tts-plugin-id", "", "Default TTS plugin id for this job")

	for _, c := range []*cobra.Command{dubPreprocessCmd, dubMediaCmd, dubReferenceCmd, dubTtsCmd, dubAlignCmd, dubComposeCmd, dubRunCmd, dubResetCmd} {
		c.Flags().StringVar(&flagJobID, "job-id", "", "Job id")
		_ = c.MarkFlagRequired("job-id")
	}
	dubPreprocessCmd.Flags().StringVar(&flagAiConfigID, "ai-config-id", "", "AiConfig id (default: the store's default config)")
	dubRunCmd.Flags().StringVar(&flagAiConfigID, "ai-config-id", "", "AiConfig id (default: the store's default config)")

	for _, c := range []*cobra.Command{dubTtsCmd, dubRunCmd} {
		c.Flags().StringVar(&flagTtsPluginID, "tts-plugin-id", "", "TTS plugin id (default: the job's tts_plugin_id)")
		c.Flags().Int64Var(&flagConcurrentLimit, "concurrent-limit", 2, "Max concurrent TTS requests")
		c.Flags().Float64Var(&flagRateLimit, "rate-limit", 0, "Max TTS requests/minute (0 = unlimited)")
	}
	for _, c := range []*cobra.Command{dubAlignCmd, dubRunCmd} {
		c.Flags().Int64Var(&flagTotalDurationMs, "total-duration-ms", 0, "Total output duration in ms (default: derived from the last subtitle)")
	}

	dubCmd.AddCommand(dubInitCmd, dubPreprocessCmd, dubMediaCmd, dubReferenceCmd, dubTtsCmd, dubAlignCmd, dubComposeCmd, dubRunCmd, dubResetCmd, dubCancelCmd)
}

func subtitleInputs(items []subtitle.Item) []dubbing.SubtitleInput {
	out := make([]dubbing.SubtitleInput, len(items))
	for i, it := range items {
		out[i] = dubbing.SubtitleInput{Index: it.ID, Text: it.Text, StartMs: it.StartMs, EndMs: it.EndMs}
	}
	return out
}

func requireJob(store *dbstore.Store, jobID string) (*dbstore.Job, error) {
	job, err := store.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %q not found", jobID)
	}
	return job, nil
}

// resolveAiConfig returns the config with id, or the store's default config
// when id is empty (spec §7's ConfigMissing when neither exists).
func resolveAiConfig(store *dbstore.Store, id string) (dbstore.AiConfig, error) {
	if id != "" {
		configs, err := store.GetAllAiConfigs()
		if err != nil {
			return dbstore.AiConfig{}, err
		}
		for _, c := range configs {
			if c.ID == id {
				return *c, nil
			}
		}
		return dbstore.AiConfig{}, dubverrs.ConfigMissing("", fmt.Sprintf("ai config %q not found", id))
	}
	cfg, err := store.GetDefaultAiConfig()
	if err != nil {
		return dbstore.AiConfig{}, err
	}
	if cfg == nil {
		return dbstore.AiConfig{}, dubverrs.ConfigMissing("", "no default ai config configured")
	}
	return *cfg, nil
}

var dubCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel an in-flight dub run (a separate `dub tts`/`dub run` process polling the same job)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("cancel requires a running process to target; use `dubverse serve` and POST /commands/cancel_dubbing instead")
	},
}

func installInterruptHandler(ctx context.Context, flag *cancel.Flag) {
	go func() {
		<-ctx.Done()
		flag.Set()
	}()
}
