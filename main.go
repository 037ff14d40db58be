// Package main provides the entry point for the ttsbridge CLI.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	cfg        *tts.Config
	logCloser  func() error

	rootCmd = &cobra.Command{
		Use:   "ttsbridge",
		Short: "Speak text and documents through a local speech engine",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text and documents through %s, or write them to audio files.", keyword("piper or espeak-ng")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}
)

// loadConfig reads the config file and environment, then applies any flags
// set on the command line.
func loadConfig(cmd *cobra.Command) error {
	c, err := tts.LoadConfig(configFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("engine") {
		c.Engine = viper.GetString("engine")
	}
	if flags.Changed("rate") {
		c.Rate = viper.GetFloat64("rate")
	}
	if flags.Changed("pitch") {
		c.Pitch = viper.GetFloat64("pitch")
	}
	if flags.Changed("lang") {
		c.Languages = viper.GetStringSlice("lang")
	}
	if flags.Changed("quiet") {
		c.Notify.Quiet = viper.GetBool("quiet")
	}
	if flags.Changed("log-level") {
		c.Log.Level = viper.GetString("log-level")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	closer, err := setupLog(c)
	if err != nil {
		return err
	}
	logCloser = closer
	cfg = c
	return nil
}

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		_ = logCloser()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", defaultConfigPath()))
	pf.StringP("engine", "e", "", "speech engine: auto, piper, espeak or mock")
	pf.Float64P("rate", "r", 1.0, "speech rate (1.0 is normal)")
	pf.Float64("pitch", 1.0, "voice pitch (1.0 is normal)")
	pf.StringSliceP("lang", "l", nil, "preferred languages in priority order, e.g. en-US,de")
	pf.BoolP("quiet", "q", false, "do not print notifications")
	pf.String("log-level", "", "log level: debug, info, warn or error")

	for _, name := range []string{"engine", "rate", "pitch", "lang", "quiet", "log-level"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}

	rootCmd.AddCommand(speakCmd, synthCmd, watchCmd, enginesCmd, configCmd, manCmd)
	log.SetReportTimestamp(false)
}
