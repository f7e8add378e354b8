package arith

import (
	"context"
	"testing"
)

// 场景1: 单 goroutine 串行调用
func BenchmarkSerialCall(b *testing.B) {
	stub := setup(b)
	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := stub.Add(ctx, 1, 2); err != nil {
			b.Fatal(err)
		}
	}
}

// 场景2: 多 goroutine 并发调用（每次调用一条新连接）
func BenchmarkConcurrentCall(b *testing.B) {
	stub := setup(b)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := stub.Add(ctx, 1, 2); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// 场景3: 消息编解码性能（不走网络）
func BenchmarkArgsMarshal(b *testing.B) {
	args := &Args{A: 1 << 40, B: -7}
	var out Args

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := args.Marshal()
		out.Unmarshal(data)
	}
}
