package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/Warpchat/cli/internal/config"
	"github.com/BioHazard786/Warpchat/cli/internal/ui"
	"github.com/BioHazard786/Warpchat/cli/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	initErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "warpchat",
	Short:   "Anonymous one-to-one chat with random strangers, peer-to-peer over WebRTC",
	Long:    `Warpchat pairs you with a random stranger, optionally within an affinity tag such as a region or interest, and opens a direct WebRTC data channel between you. When a direct connection cannot be made, messages are relayed through the server.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initErr
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/warpchat/config.yaml)")
	flags.String(config.KeyServer, "", "signaling server URL (default "+config.DefaultServer+")")
	flags.String(config.KeySTUN, "", "STUN server URL")
	flags.String(config.KeyTURN, "", "TURN server URL")
	flags.String(config.KeyTURNUser, "", "TURN username")
	flags.String(config.KeyTURNPass, "", "TURN password")
	flags.Bool(config.KeyRelay, false, "force all traffic through the TURN relay")

	for _, key := range []string{config.KeyServer, config.KeySTUN, config.KeyTURN, config.KeyTURNUser, config.KeyTURNPass, config.KeyRelay} {
		viper.BindPFlag(key, flags.Lookup(key))
	}

	rootCmd.AddCommand(chatCmd, statusCmd)
}

func initConfig() {
	initErr = config.InitViper(viper.GetViper(), cfgFile)
}

// LoadConfig resolves flags, environment, config file and defaults.
func LoadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
