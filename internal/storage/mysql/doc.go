// Package mysql 提供基于 MySQL 的账户、画廊目录、订单与 M-Pesa 交易存储，
// 以及内嵌 SQL 迁移的执行逻辑。
package mysql
