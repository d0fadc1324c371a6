// Package catalog 从 YAML 种子文件导入管理员、艺术家、作品与展览，
// 用于开发环境初始化与演示数据。
package catalog
