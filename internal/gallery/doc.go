// Package gallery 实现画廊的核心业务：作品、展览、留言、订单与门票、推荐。
//
// 所有写操作在进入存储层之前都经过 auth 包中的策略检查，存储层只负责持久化
// 与原子性（例如展位预留）。
package gallery
