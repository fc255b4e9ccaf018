// Package config 載入服務設定：.env（可選）→ 環境變數 → 命令列旗標。
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// 儲存基底名稱。
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config 為帳本服務設定。
type Config struct {
	Addr        string        `env:"LEDGER_ADDR" envDefault:":8080"`
	Backend     string        `env:"LEDGER_BACKEND" envDefault:"memory"`
	DataFile    string        `env:"LEDGER_DATA_FILE" envDefault:"data.json"`
	SQLitePath  string        `env:"LEDGER_SQLITE_PATH" envDefault:"ledger.db"`
	RedisAddr   string        `env:"LEDGER_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix string        `env:"LEDGER_REDIS_PREFIX" envDefault:"ledger:"`
	TotalSupply uint64        `env:"LEDGER_TOTAL_SUPPLY" envDefault:"21000000"`
	JWTSecret   string        `env:"LEDGER_JWT_SECRET"`
	TokenTTL    time.Duration `env:"LEDGER_TOKEN_TTL" envDefault:"24h"`
	LogDev      bool          `env:"LEDGER_LOG_DEV" envDefault:"false"`
}

// LoadDotEnv 載入 .env 檔；檔案不存在不視為錯誤。已存在的環境變數不會被覆寫。
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ParseEnv 由環境變數載入設定到 target。
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load 先讀環境變數預設值，再以 args 中的旗標覆寫，最後驗證。
func Load(flags *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flags.StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: memory|sqlite|redis")
	flags.StringVar(&cfg.DataFile, "data", cfg.DataFile, "JSON snapshot file for the memory backend (empty disables)")
	flags.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "SQLite database path")
	flags.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address")
	flags.Uint64Var(&cfg.TotalSupply, "supply", cfg.TotalSupply, "total supply written at genesis")
	flags.BoolVar(&cfg.LogDev, "dev", cfg.LogDev, "development logging")
	if args == nil {
		args = []string{}
	}
	if err := flags.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate 檢查必要欄位。
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("LEDGER_JWT_SECRET is required")
	}
	if c.TotalSupply == 0 {
		return errors.New("total supply must be > 0")
	}
	return nil
}

// Exitf 將錯誤訊息寫到 stderr 並以代碼 1 結束行程。
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
