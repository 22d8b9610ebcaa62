package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petems/transvox/internal/config"
	"github.com/petems/transvox/internal/logging"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config
	log     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "transvox",
	Short: "Capture, transcribe and translate system audio",
	Long: `transvox records what your computer is playing (loopback capture of the
default output device) into a 16 kHz mono WAV file, transcribes recordings
with whisper.cpp and translates transcripts with an OpenAI-compatible model.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := bindFlags(cmd); err != nil {
			return err
		}
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		log = logging.NewWithLevel(cfg.LogLevel)
		log.Debug().Str("config", v.ConfigFileUsed()).Msg("Config loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <config dir>/transvox/config.json)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
