package migrations

import "embed"

// FS 內嵌帳本儲存的 SQLite migration。
//
//go:embed *.sql
var FS embed.FS
