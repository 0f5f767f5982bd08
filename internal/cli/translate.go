package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leica1994/dubverse/internal/cancel"
	"github.com/leica1994/dubverse/internal/subtitle"
	"github.com/leica1994/dubverse/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Run the multi-phase translation engine over a project's subtitles",
}

var (
	flagProjectDir     string
	flagTargetLanguage string
	flagCorrection     bool
	flagOptimization   bool
	flagPromptType     string
	flagBatchSize      int
)

var translateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Translate a project's subtitles.json, writing the results back over it",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if flagProjectDir == "" || flagTargetLanguage == "" {
			return fmt.Errorf("--project-dir and --target-language are required")
		}
		cfg, err := resolveAiConfig(a.Store, flagAiConfigID)
		if err != nil {
			return err
		}
		items, err := subtitle.Load(flagProjectDir)
		if err != nil {
			return err
		}
		subs := make([]translate.Subtitle, len(items))
		for i, it := range items {
			subs[i] = translate.Subtitle{Index: it.ID, Text: it.Text}
		}

		flag := cancel.New()
		installInterruptHandler(cmd.Context(), flag)

		opts := translate.Options{
			ProjectDir:     flagProjectDir,
			TargetLanguage: flagTargetLanguage,
			Correction:     flagCorrection,
			Optimization:   flagOptimization,
			PromptType:     flagPromptType,
			BatchSize:      flagBatchSize,
			Knobs:          translate.Knobs{TargetLanguage: flagTargetLanguage},
		}
		results, err := a.Engine.Run(cmd.Context(), subs, opts, cfg, flag)
		if err != nil {
			return err
		}

		translated := make([]subtitle.Item, len(items))
		for i, it := range items {
			translated[i] = it
			if text, ok := results[it.ID]; ok {
				translated[i].Text = text
			}
		}
		return subtitle.Save(flagProjectDir, translated)
	},
}

var translateCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel an in-flight translation run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("cancel requires a running process to target; use `dubverse serve` and POST /commands/cancel_translation instead")
	},
}

var translateClearProgressCmd = &cobra.Command{
	Use:   "clear-progress",
	Short: "Discard saved per-subtitle translation checkpoints for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if flagProjectDir == "" {
			return fmt.Errorf("--project-dir is required")
		}
		return a.Store.ClearTranslationProgress(flagProjectDir)
	},
}

func init() {
	translateRunCmd.Flags().StringVar(&flagProjectDir, "project-dir", "", "Project directory containing subtitles.json")
	translateRunCmd.Flags().StringVar(&flagTargetLanguage, "target-language", "", "Target language name or code")
	translateRunCmd.Flags().BoolVar(&flagCorrection, "correction", false, "Run the Correction phase first")
	translateRunCmd.Flags().BoolVar(&flagOptimization, "optimization", false, "Run the Optimization phase last")
	translateRunCmd.Flags().StringVar(&flagPromptType, "prompt-type", "standard", "Translation prompt variant: standard, reflective")
	translateRunCmd.Flags().IntVar(&flagBatchSize, "batch-size", 20, "Subtitles per LLM batch call")
	translateRunCmd.Flags().StringVar(&flagAiConfigID, "ai-config-id", "", "AiConfig id (default: the store's default config)")

	translateClearProgressCmd.Flags().StringVar(&flagProjectDir, "project-dir", "", "Project directory")

	translateCmd.AddCommand(translateRunCmd, translateCancelCmd, translateClearProgressCmd)
}
