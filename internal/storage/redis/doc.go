// Package redis 提供基于 Redis 的共享状态，目前用于多实例部署下的两步验证码存储。
package redis
