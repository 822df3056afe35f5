package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/ui"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "opendrop",
	Short:   "Peer-to-peer file transfer over WebRTC using six-digit room codes",
	Long: `OpenDrop transfers files directly between devices using WebRTC data
channels. A lightweight signaling server pairs participants through
six-digit room codes; once paired, file bytes flow peer to peer and
never touch the server.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
