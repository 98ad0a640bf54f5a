package commands

import (
	"errors"
	"gcdfetch/lib/configutil"
	"gcdfetch/lib/credentials"
	"gcdfetch/lib/gcd"
	"gcdfetch/lib/history"
	"gcdfetch/lib/notify"
	"gcdfetch/lib/telemetry"
	"log/slog"
	"os"
)

type Config struct {
	Portal  gcd.Options              `json:"portal"`
	History history.Config           `json:"history"`
	Secret  credentials.SecretConfig `json:"secret"`
	Notify  notify.Config            `json:"notify"`
	LogFile telemetry.LogFileConfig  `json:"log_file"`

	// defaults to the working directory
	OutputDir    string `json:"output_dir"`
	FailOnNotice bool   `json:"fail_on_notice"`
	// exchanges are only dumped with --verbose
	HttpDumpDir string `json:"http_dump_dir"`
}

func DefaultConfig() Config {
	return Config{
		Portal:    gcd.DefaultOptions(),
		History:   history.DefaultConfig(),
		Secret:    credentials.DefaultSecretConfig(),
		OutputDir: ".",
	}
}

// loadConfig returns the defaults when `path` does not exist.
func loadConfig(path string) (Config, error) {
	cfg, err := configutil.Load(path, DefaultConfig())
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
