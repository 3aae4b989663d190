package cli

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andreyvit/ordkv"
)

// initConfig loads .env files and binds ORDKV_* environment variables.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("ordkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupStoreFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("db", "", "Path of the store to open")
	cmd.PersistentFlags().String("backend", string(ordkv.BoltBackend), "Store backend (bolt, leveldb, badger)")
	cmd.PersistentFlags().Int("workers", 0, "Parallelism of bulk operations (0 = GOMAXPROCS)")
	cmd.PersistentFlags().Bool("hex", false, "Keys and values are given and printed in hex")
	cmd.PersistentFlags().Bool("sync", false, "Fsync every write")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages to stderr")
	cmd.PersistentFlags().Bool("metrics", false, "Print metrics in Prometheus format on exit")
}

func bindFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

func options() (ordkv.Options, string, error) {
	path := viper.GetString("db")
	if path == "" {
		return ordkv.Options{}, "", fmt.Errorf("--db (or ORDKV_DB) is required")
	}
	backend, err := ordkv.ParseBackend(viper.GetString("backend"))
	if err != nil {
		return ordkv.Options{}, "", err
	}
	if backend == ordkv.MemoryBackend {
		return ordkv.Options{}, "", fmt.Errorf("the memory backend does not persist anything")
	}

	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	opt := ordkv.Options{
		Backend:    backend,
		Logger:     slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		Verbose:    viper.GetBool("verbose"),
		Workers:    viper.GetInt("workers"),
		SyncWrites: viper.GetBool("sync"),
	}
	return opt, path, nil
}

func parseBytes(s string) ([]byte, error) {
	if !viper.GetBool("hex") {
		return []byte(s), nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

func formatBytes(b []byte) string {
	if viper.GetBool("hex") {
		return hex.EncodeToString(b)
	}
	return string(b)
}
