// Package eventbus 实现引擎事件分发
//
// 引擎在事件循环中调用 Emit 把事件追加到内部 FIFO 队列，
// 每个任务或定时器执行完毕后由循环调用 Flush，按检测顺序派发给订阅者：
//   - Subscribe: 在循环协程中同步调用处理函数
//   - Subscribe(..., Async()): 在订阅自己的协程中按顺序调用，可以回调引擎
//   - SubscribeChan: 投递到带缓冲通道，缓冲满时丢弃并每 100 次告警一次
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	sub := bus.SubscribeChan(64)
//	defer sub.Close()
//
//	go func() {
//	    for ev := range sub.Out() {
//	        fmt.Println(ev)
//	    }
//	}()
//
//	bus.Emit(types.PublishedEvent())
//	bus.Flush()
//
// # 并发安全
//
// Emit/Flush 只在事件循环中调用；Subscribe 和 Subscription.Close
// 可以在任意协程调用。处理函数的 panic 会被恢复并记录。
package eventbus
