// Package migrations 内嵌画廊数据库的 schema 迁移。
package migrations

import "embed"

// Files 中的 SQL 按文件名前缀的序号依次执行，已执行的版本记录在 schema_migrations 表。
//
//go:embed *.sql
var Files embed.FS
