package app

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the process-level configuration. Per-library settings live
// in profiles; this only locates files and the listen address.
type Config struct {
	ListenAddr   string `koanf:"listen_addr"`
	DataDir      string `koanf:"data_dir"`      // profile databases
	ProfilesPath string `koanf:"profiles_path"` // profiles TOML file
	FpcalcPath   string `koanf:"fpcalc_path"`   // explicit fpcalc binary, empty = auto-detect
	LogLevel     string `koanf:"log_level"`     // debug, info, warn, error

	WatchLibrary bool     `koanf:"watch_library"` // invalidate duplicate results on file changes
	WatchDirs    []string `koanf:"watch_dirs"`
}

// LoadConfig reads config files in order of priority (last wins):
// ~/.config/mp3org/config.toml, then ./config.toml.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		ListenAddr: ":8380",
		LogLevel:   "info",
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(xdg.DataHome, "mp3org")
	}
	if cfg.ProfilesPath == "" {
		cfg.ProfilesPath = filepath.Join(cfg.DataDir, "mp3org-profiles.toml")
	}
	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.ProfilesPath = expandPath(cfg.ProfilesPath)
	cfg.FpcalcPath = expandPath(cfg.FpcalcPath)
	for i, dir := range cfg.WatchDirs {
		cfg.WatchDirs[i] = expandPath(dir)
	}
	return cfg, nil
}

func configPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mp3org", "config.toml"))
	}
	paths = append(paths, "config.toml")
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
