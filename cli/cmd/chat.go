package cmd

import (
	"log/slog"

	"github.com/BioHazard786/Warpchat/cli/internal/config"
	"github.com/BioHazard786/Warpchat/cli/internal/session"
	"github.com/BioHazard786/Warpchat/cli/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var flagRelayChat bool

var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"c"},
	Short:   "Chat with a random stranger",
	Long: `Join the waiting pool and chat with the next available stranger.

With --tag you are matched with someone in the same tag first; if nobody
there is waiting you may be matched with anyone. Type /help in the chat
for commands.

Examples:
  warpchat chat
  warpchat chat --tag eu
  warpchat chat --server ws://localhost:8080 --relay-chat`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}

		sp := ui.RunConnectionSpinner("Connecting to " + cfg.ServerURL + "...")
		conn, err := NewConnectionContext(cmd.Context(), cfg)
		if err != nil {
			sp.Error("Could not reach the server")
			return err
		}
		defer conn.Close()
		sp.Success("Connected to " + cfg.ServerURL)

		if flagRelayChat {
			ui.PrintWarning("Messages go through the server instead of a direct connection.")
		}

		screen := ui.NewChatUI()
		screen.Start()

		s := session.New(cfg, conn.Client, conn.Handler, screen, session.Options{
			UserID:    cfg.UserID,
			Tag:       cfg.Tag,
			RelayChat: flagRelayChat,
		}, slog.Default())

		summary, runErr := s.Run(cmd.Context())
		if err := screen.Stop(); err != nil && runErr == nil {
			runErr = err
		}

		ui.RenderSessionSummary(summary)
		return runErr
	},
}

func init() {
	flags := chatCmd.Flags()
	flags.String(config.KeyTag, "", "affinity tag to match within first (case-insensitive)")
	flags.String(config.KeyUserID, "", "optional user ID shown to nobody but the server")
	flags.BoolVar(&flagRelayChat, "relay-chat", false, "send messages through the server instead of a direct data channel")

	viper.BindPFlag(config.KeyTag, flags.Lookup(config.KeyTag))
	viper.BindPFlag(config.KeyUserID, flags.Lookup(config.KeyUserID))
}
