package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leica1994/dubverse/internal/app"
	"github.com/leica1994/dubverse/internal/dbstore"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage AiConfig and TtsPlugin records",
}

var configAiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Manage LLM endpoint configs",
}

var configTtsCmd = &cobra.Command{
	Use:   "tts",
	Short: "Manage TTS plugin configs",
}

var (
	flagCfgID              string
	flagCfgBaseURL         string
	flagCfgAPIKey          string
	flagCfgModel           string
	flagCfgConcurrentLimit int64
	flagCfgRequestTimeout  int
	flagCfgRateLimit       float64
	flagCfgIsDefault       bool

	flagPluginType    string
	flagPluginConfig  string
	flagRequiresRef   bool
)

var configAiListCmd = &cobra.Command{
	Use:   "list",
	Short: "List AiConfig records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		configs, err := a.Store.GetAllAiConfigs()
		if err != nil {
			return err
		}
		return printJSON(configs)
	},
}

var configAiCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an AiConfig record",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		cfg := &dbstore.AiConfig{
			ID:              flagCfgID,
			BaseURL:         flagCfgBaseURL,
			APIKey:          flagCfgAPIKey,
			Model:           flagCfgModel,
			ConcurrentLimit: flagCfgConcurrentLimit,
			RequestTimeout:  flagCfgRequestTimeout,
			RateLimit:       flagCfgRateLimit,
			IsDefault:       flagCfgIsDefault,
		}
		if cfg.ID == "" {
			cfg.ID = uuid.NewString()
		}
		if err := a.Store.CreateAiConfig(cfg); err != nil {
			return err
		}
		return printJSON(cfg)
	},
}

var configAiUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update an AiConfig record",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if flagCfgID == "" {
			return fmt.Errorf("--id is required")
		}
		cfg := &dbstore.AiConfig{
			ID:              flagCfgID,
			BaseURL:         flagCfgBaseURL,
			APIKey:          flagCfgAPIKey,
			Model:           flagCfgModel,
			ConcurrentLimit: flagCfgConcurrentLimit,
			RequestTimeout:  flagCfgRequestTimeout,
			RateLimit:       flagCfgRateLimit,
			IsDefault:       flagCfgIsDefault,
		}
		if err := a.Store.UpdateAiConfig(cfg); err != nil {
			return err
		}
		if cfg.IsDefault {
			if err := a.Store.SetDefaultAiConfig(cfg.ID); err != nil {
				return err
			}
		}
		return printJSON(cfg)
	},
}

var configAiDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an AiConfig record",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Store.DeleteAiConfig(flagCfgID)
	},
}

var configAiSetDefaultCmd = &cobra.Command{
	Use:   "set-default",
	Short: "Mark an AiConfig as the default",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Store.SetDefaultAiConfig(flagCfgID)
	},
}

var configAiTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Probe connectivity for an AiConfig",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		cfg, err := resolveAiConfig(a.Store, flagCfgID)
		if err != nil {
			return err
		}
		if err := a.Control.TestAiConnection(context.Background(), cfg); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var configTtsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List TtsPlugin records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		plugins, err := a.Store.GetAllTtsPlugins()
		if err != nil {
			return err
		}
		return printJSON(plugins)
	},
}

var configTtsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a TtsPlugin record",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		plugin := &dbstore.TtsPlugin{
			ID:          flagCfgID,
			PluginType:  dbstore.TtsPluginType(flagPluginType),
			ConfigJSON:  flagPluginConfig,
			RequiresRef: flagRequiresRef,
		}
		if plugin.ID == "" {
			plugin.ID = uuid.NewString()
		}
		if err := a.Store.CreateTtsPlugin(plugin); err != nil {
			return err
		}
		return printJSON(plugin)
	},
}

var configTtsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update a TtsPlugin record",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if flagCfgID == "" {
			return fmt.Errorf("--id is required")
		}
		plugin := &dbstore.TtsPlugin{
			ID:          flagCfgID,
			PluginType:  dbstore.TtsPluginType(flagPluginType),
			ConfigJSON:  flagPluginConfig,
			RequiresRef: flagRequiresRef,
		}
		if err := a.Store.UpdateTtsPlugin(plugin); err != nil {
			return err
		}
		a.Control.InvalidatePlugin(plugin.ID)
		return printJSON(plugin)
	},
}

var configTtsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a TtsPlugin record",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Store.DeleteTtsPlugin(flagCfgID); err != nil {
			return err
		}
		a.Control.InvalidatePlugin(flagCfgID)
		return nil
	},
}

var configTtsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Probe connectivity for a TtsPlugin",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		plugin, err := lookupPlugin(a, flagCfgID)
		if err != nil {
			return err
		}
		if err := a.Control.TestTtsPlugin(context.Background(), plugin); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var configTtsVoicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List voices exposed by a TtsPlugin",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		plugin, err := lookupPlugin(a, flagCfgID)
		if err != nil {
			return err
		}
		voices, err := a.Control.ListTtsVoices(context.Background(), plugin)
		if err != nil {
			return err
		}
		return printJSON(voices)
	},
}

func init() {
	for _, c := range []*cobra.Command{configAiCreateCmd, configAiUpdateCmd, configAiDeleteCmd, configAiSetDefaultCmd, configAiTestCmd} {
		c.Flags().StringVar(&flagCfgID, "id", "", "AiConfig id")
	}
	for _, c := range []*cobra.Command{configAiCreateCmd, configAiUpdateCmd} {
		c.Flags().StringVar(&flagCfgBaseURL, "base-url", "", "Chat-completions base URL")
		c.Flags().StringVar(&flagCfgAPIKey, "api-key", "", "API key")
		c.Flags().StringVar(&flagCfgModel, "model", "", "Model name")
		c.Flags().Int64Var(&flagCfgConcurrentLimit, "concurrent-limit", 2, "Max concurrent requests")
		c.Flags().IntVar(&flagCfgRequestTimeout, "request-timeout", 60, "Request timeout in seconds")
		c.Flags().Float64Var(&flagCfgRateLimit, "rate-limit", 0, "Max requests/minute (0 = unlimited)")
		c.Flags().BoolVar(&flagCfgIsDefault, "default", false, "Mark as the default config")
	}

	for _, c := range []*cobra.Command{configTtsCreateCmd, configTtsUpdateCmd, configTtsDeleteCmd, configTtsTestCmd, configTtsVoicesCmd} {
		c.Flags().StringVar(&flagCfgID, "id", "", "TtsPlugin id")
	}
	for _, c := range []*cobra.Command{configTtsCreateCmd, configTtsUpdateCmd} {
		c.Flags().StringVar(&flagPluginType, "plugin-type", "", "Plugin type: ncn, gradio, http_rest")
		c.Flags().StringVar(&flagPluginConfig, "config-json", "{}", "Opaque plugin config JSON")
		c.Flags().BoolVar(&flagRequiresRef, "requires-ref", true, "Whether this plugin needs reference audio")
	}

	configAiCmd.AddCommand(configAiListCmd, configAiCreateCmd, configAiUpdateCmd, configAiDeleteCmd, configAiSetDefaultCmd, configAiTestCmd)
	configTtsCmd.AddCommand(configTtsListCmd, configTtsCreateCmd, configTtsUpdateCmd, configTtsDeleteCmd, configTtsTestCmd, configTtsVoicesCmd)
	configCmd.AddCommand(configAiCmd, configTtsCmd)
}

func lookupPlugin(a *app.App, id string) (dbstore.TtsPlugin, error) {
	plugin, err := a.Store.GetTtsPlugin(id)
	if err != nil {
		return dbstore.TtsPlugin{}, err
	}
	if plugin == nil {
		return dbstore.TtsPlugin{}, fmt.Errorf("tts plugin %q not found", id)
	}
	return *plugin, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
