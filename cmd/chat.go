package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/linanwx/surfbot/config"
	"github.com/linanwx/surfbot/provider"
	"github.com/linanwx/surfbot/session"
	"github.com/linanwx/surfbot/stream"
)

var (
	messageFlag    string
	transportFlag  string
	modelFlag      string
	apiKeyFlag     string
	apiBaseFlag    string
	noMarkdownFlag bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a streaming assistant",
	Long: `Start an interactive chat session, or send a single message with -m.

Use --transport, --model, --api-key, --api-base to override config at
runtime. This allows testing different backends without editing config.yaml.

Examples:
  surfbot chat                                     # Interactive mode
  surfbot chat -m "Hello world"                    # Single message
  surfbot chat --transport anthropic --api-key sk-xxx -m "hi"
  surfbot chat --transport sse --api-base http://localhost:8080/v1 -m "hi"`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Send a single message")
	chatCmd.Flags().StringVar(&transportFlag, "transport", "", "Override transport (anthropic, sse)")
	chatCmd.Flags().StringVar(&modelFlag, "model", "", "Override model (e.g. claude-sonnet-4-5)")
	chatCmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "Override API key")
	chatCmd.Flags().StringVar(&apiBaseFlag, "api-base", "", "Override API base URL")
	chatCmd.Flags().BoolVar(&noMarkdownFlag, "no-markdown", false, "Disable markdown rendering")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'surfbot onboard' to initialize", err)
	}
	applyChatOverrides(cfg)

	apiKey, err := cfg.APIKey()
	if err != nil {
		return err
	}
	transport, err := provider.New(cfg.Session.Transport, provider.Settings{
		APIKey:    apiKey,
		APIBase:   cfg.APIBase(),
		Model:     cfg.Session.Model,
		MaxTokens: cfg.Session.MaxTokens,
	})
	if err != nil {
		return err
	}

	if messageFlag != "" {
		return runSingleMessage(transport, messageFlag)
	}
	return runInteractive(cfg, transport)
}

// applyChatOverrides layers CLI flags over the loaded config.
func applyChatOverrides(cfg *config.Config) {
	if transportFlag != "" {
		cfg.Session.Transport = transportFlag
	}
	if modelFlag != "" {
		cfg.Session.Model = modelFlag
	}
	if apiKeyFlag != "" || apiBaseFlag != "" {
		pc := &config.ProviderConfig{APIKey: apiKeyFlag, APIBase: apiBaseFlag}
		switch cfg.Session.Transport {
		case "anthropic":
			if cfg.Providers.Anthropic != nil {
				if pc.APIKey == "" {
					pc.APIKey = cfg.Providers.Anthropic.APIKey
				}
				if pc.APIBase == "" {
					pc.APIBase = cfg.Providers.Anthropic.APIBase
				}
			}
			cfg.Providers.Anthropic = pc
		case "sse":
			if cfg.Providers.SSE != nil {
				if pc.APIKey == "" {
					pc.APIKey = cfg.Providers.SSE.APIKey
				}
				if pc.APIBase == "" {
					pc.APIBase = cfg.Providers.SSE.APIBase
				}
			}
			cfg.Providers.SSE = pc
		}
	}
	if noMarkdownFlag {
		off := false
		cfg.UI.Markdown = &off
	}
}

// runSingleMessage sends one message and prints the assembled reply.
// No terminal takeover; suitable for scripting.
func runSingleMessage(transport stream.Transport, text string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := transport.Start(ctx)
	if err != nil {
		return err
	}
	defer transport.Stop()

	if err := transport.Send(ctx, stream.Envelope{Text: text}); err != nil {
		return err
	}

	var reply strings.Builder
	for ev := range events {
		switch e := ev.(type) {
		case stream.ContentBlockDeltaEvent:
			if e.Delta == stream.DeltaText {
				reply.WriteString(e.Text)
			}
		case stream.ResultEvent:
			fmt.Println(strings.TrimSpace(reply.String()))
			return nil
		case stream.ErrorEvent:
			return e.Err
		}
	}
	return fmt.Errorf("stream closed before result")
}

// runInteractive takes the terminal into raw mode and runs the full
// session loop. The terminal state is restored on every exit path.
func runInteractive(cfg *config.Config, transport stream.Transport) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("interactive mode requires a terminal (use -m for one-shot)")
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	ctrl := session.New(session.Options{
		Transport: transport,
		In:        os.Stdin,
		Out:       os.Stdout,
		Width: func() int {
			w, _, err := term.GetSize(fd)
			if err != nil || w <= 0 {
				return 80
			}
			return w
		},
		Markdown:        cfg.MarkdownEnabled(),
		SpinnerInterval: cfg.SpinnerInterval(),
		Name:            cfg.UI.Name,
		Tagline:         cfg.UI.Tagline,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			ctrl.Interrupt()
		}
	}()

	res, err := ctrl.Start(context.Background())

	term.Restore(fd, oldState)
	if err != nil {
		return err
	}
	if res.TotalCostUSD > 0 {
		fmt.Printf("total: $%.4f\n", res.TotalCostUSD)
	}
	if !res.Success {
		os.Exit(1)
	}
	return nil
}
