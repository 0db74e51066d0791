package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "syncd",
		Short:         "Conversation synchronization gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to config file")
	root.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().String("log-format", "", "log format (text|json)")
	_ = viper.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))

	cobra.OnInitialize(func() {
		if cfg, _ := root.PersistentFlags().GetString("config"); cfg != "" {
			viper.SetConfigFile(cfg)
			if err := viper.ReadInConfig(); err != nil {
				log.Printf("Warning: config file not loaded: %v", err)
			}
		}
	})

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("database.url", "")
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("session.subject", "")
	viper.SetDefault("sync.debounce_ms", 400)
	viper.SetDefault("sync.window", 50)
	viper.SetDefault("worker.concurrency", 10)
	viper.SetDefault("guard.read_only", false)
	viper.SetDefault("guard.blocked_actions", []string{})
	viper.SetDefault("logging.level", "")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)

	root.AddCommand(newServeCmd())
	return root
}
