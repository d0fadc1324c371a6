// Package payment 负责 M-Pesa STK Push 支付：发起扣款、查询状态、
// 接收网关回调，并通过后台任务把结果结算到订单或门票上。
//
// 一笔交易以 CheckoutRequestID 标识。交易结果只写入一次，之后的回调或
// 查询不会改变它；结算按 CheckoutRequestID 幂等执行，支付确认邮件只发一次。
package payment
