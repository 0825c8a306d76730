package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yanmxa/hezell/internal/image"
	"github.com/yanmxa/hezell/internal/log"
	"github.com/yanmxa/hezell/internal/message"
	"github.com/yanmxa/hezell/internal/provider"
	"github.com/yanmxa/hezell/internal/tui"

	// Import providers for registration
	_ "github.com/yanmxa/hezell/internal/provider/anthropic"
	_ "github.com/yanmxa/hezell/internal/provider/google"
	_ "github.com/yanmxa/hezell/internal/provider/openai"
)

var (
	version = "0.1.0"
)

func init() {
	// Load .env file if it exists (silent fail if not found)
	_ = godotenv.Load()

	// Initialize logging (enabled via HEZELL_DEBUG=1)
	_ = log.Init()
}

func main() {
	defer log.Sync()

	if err := exitErr(rootCmd.Execute()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// exitErr treats an interrupted run as a normal exit.
func exitErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var (
	promptFlag   string
	continueFlag bool
	engineFlag   string
	personaFlag  string
	attachFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "hezell [message]",
	Short: "Hezell - Gemini chat for the terminal",
	Long: `Hezell is a terminal chat client for Gemini with reasoning, web search,
image generation and editing, and saved conversations.

Non-interactive mode:
  hezell "your message"       Send a message directly
  echo "message" | hezell     Send a message via stdin
  hezell -p "prompt"          Use a custom prompt`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		env, err := setup(ctx, overrides{engine: engineFlag, persona: personaFlag})
		if err != nil {
			return err
		}
		defer env.store.Close()

		input := getInputMessage(args)
		if input == "" && !isTerminal(os.Stdin) {
			return errors.New("no message given and stdin is not a terminal")
		}

		app, err := tui.New(tui.Options{
			Conversation: env.conversation,
			In:           os.Stdin,
			Out:          os.Stdout,
			Width:        terminalWidth(),
			ImageDir:     env.imageDir,
		})
		if err != nil {
			return err
		}

		if continueFlag {
			if latest, ok := env.store.Latest(); ok {
				if err := app.Controller().LoadSession(latest.ID); err != nil {
					return err
				}
			}
		}
		if attachFlag != "" {
			att, err := image.Load(attachFlag)
			if err != nil {
				return err
			}
			if err := app.Controller().Stage(att); err != nil {
				return err
			}
		}

		if input != "" {
			return runNonInteractive(ctx, app, input)
		}
		return app.Run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Prompt to send")
	rootCmd.Flags().BoolVarP(&continueFlag, "continue", "c", false, "Continue the most recent conversation")
	rootCmd.Flags().StringVarP(&engineFlag, "engine", "e", "", "Engine id (overrides settings)")
	rootCmd.Flags().StringVar(&personaFlag, "persona", "", "Persona name (overrides settings)")
	rootCmd.Flags().StringVarP(&attachFlag, "attach", "a", "", "Attach an image or PDF to the first message")
}

// getInputMessage gets input from args, flags, or stdin
func getInputMessage(args []string) string {
	if promptFlag != "" {
		return promptFlag
	}
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	if !isTerminal(os.Stdin) {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err == nil && len(data) > 0 {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

// runNonInteractive sends one message and prints the answer. Markdown is
// rendered only when stdout is a terminal.
func runNonInteractive(ctx context.Context, app *tui.App, input string) error {
	bot, err := app.Ask(ctx, input)
	if err != nil {
		return err
	}
	if isTerminal(os.Stdout) {
		fmt.Println(app.RenderBot(bot))
		return nil
	}
	fmt.Println(plainAnswer(bot))
	return nil
}

// plainAnswer is the pipe-friendly form of a bot message.
func plainAnswer(m message.Message) string {
	var sb strings.Builder
	sb.WriteString(m.Text)
	if m.Grounding != nil {
		for _, src := range m.Grounding.Sources {
			sb.WriteString("\n- " + src.URI)
		}
	}
	return sb.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hezell version %s\n", version)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved conversations",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd.Context(), overrides{offline: true})
		if err != nil {
			return err
		}
		defer env.store.Close()

		fmt.Println(tui.RenderSessions(env.store.List(), terminalWidth(), time.Now()))
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all saved conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd.Context(), overrides{offline: true})
		if err != nil {
			return err
		}
		defer env.store.Close()

		if err := env.store.Clear(); err != nil {
			return err
		}
		fmt.Println("History cleared.")
		return nil
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show which providers have credentials configured",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(formatProviders(provider.GetProvidersWithStatus()))
	},
}

func formatProviders(infos []provider.ProviderInfo) string {
	var sb strings.Builder
	for _, info := range infos {
		mark := "-"
		if info.Status == provider.StatusAvailable {
			mark = "✓"
		}
		fmt.Fprintf(&sb, "%s %-28s %s\n", mark, info.Meta.DisplayName, strings.Join(info.Meta.EnvVars, ", "))
	}
	return sb.String()
}

func init() {
	historyCmd.AddCommand(historyListCmd, historyClearCmd)
	rootCmd.AddCommand(versionCmd, historyCmd, providersCmd)
}
