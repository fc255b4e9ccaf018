// cmd/token/main.go

// 為帳戶簽發呼叫者 token，供本機測試 initialize/transfer 使用：
//
//	LEDGER_JWT_SECRET=... token -account alice
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"ledger/internal/auth"
	"ledger/internal/config"
	"ledger/internal/ledger"
)

type tokenConfig struct {
	Secret string        `env:"LEDGER_JWT_SECRET"`
	TTL    time.Duration `env:"LEDGER_TOKEN_TTL" envDefault:"24h"`
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		config.Exitf("token: %v", err)
	}
	var cfg tokenConfig
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("token: %v", err)
	}
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	account := fs.String("account", "", "account id (token subject)")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime; 0 never expires")
	_ = fs.Parse(os.Args[1:])

	a, err := auth.New(cfg.Secret, cfg.TTL)
	if err != nil {
		config.Exitf("token: %v", err)
	}
	tok, err := a.Issue(ledger.AccountID(*account))
	if err != nil {
		config.Exitf("token: %v", err)
	}
	fmt.Println(tok)
}
