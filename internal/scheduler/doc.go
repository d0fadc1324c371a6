// Package scheduler 运行画廊的后台维护任务：刷新展览状态、让超时的 M-Pesa
// 交易失效以及清理过期验证码。
package scheduler
