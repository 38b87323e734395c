package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/linanwx/surfbot/config"
	"github.com/linanwx/surfbot/provider"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize surfbot configuration",
	Long:  `Create the surfbot configuration directory and default config file.`,
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

// transportURLs maps transport names to their API key portal URLs.
var transportURLs = map[string]string{
	"anthropic": "https://console.anthropic.com",
	"sse":       "https://platform.openai.com/api-keys",
}

func runOnboard(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config already exists at:", configPath)
		fmt.Println("To reconfigure, edit the file directly or delete it first.")
		return nil
	}

	// --- interactive wizard ---

	cfg := config.DefaultConfig()

	var (
		selectedTransport string
		model             string
		apiKey            string
		markdown          = true
	)

	transportOptions := make([]huh.Option[string], 0, len(provider.Supported()))
	for _, name := range provider.Supported() {
		label := name
		if url, ok := transportURLs[name]; ok {
			label = fmt.Sprintf("%s (%s)", name, url)
		}
		transportOptions = append(transportOptions, huh.NewOption(label, name))
	}

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose your transport").
				Description("surfbot streams from an assistant backend. Choose one to get started.").
				Options(transportOptions...).
				Value(&selectedTransport),
		),
	).Run()
	if err != nil {
		return err
	}

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Model").
				Description("Leave empty for the transport default.").
				Value(&model),
			huh.NewInput().
				Title("API key").
				Description(fmt.Sprintf("Also read from %s if left empty.", provider.EnvKeyFor(selectedTransport))).
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewConfirm().
				Title("Render assistant prose as Markdown?").
				Value(&markdown),
		),
	).Run()
	if err != nil {
		return err
	}

	cfg.Session.Transport = selectedTransport
	if model != "" {
		cfg.Session.Model = model
	}
	pc := &config.ProviderConfig{APIKey: apiKey}
	switch selectedTransport {
	case "anthropic":
		cfg.Providers.Anthropic = pc
	case "sse":
		cfg.Providers.SSE = pc
	}
	cfg.UI.Markdown = &markdown

	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Println("Config written to:", configPath)
	fmt.Println("Run 'surfbot chat' to start a session.")
	return nil
}
