package arith

import (
	"context"
	"testing"
	"time"

	"github.com/HUMBLE6666/rpc/discovery"
	"go.uber.org/zap"
)

// connectEtcd returns a connected session or skips the test when no etcd
// answers on localhost:2379.
func connectEtcd(t *testing.T) *discovery.Etcd {
	t.Helper()
	e := discovery.NewEtcd(discovery.EtcdConfig{
		Endpoints:   []string{"127.0.0.1:2379"},
		DialTimeout: time.Second,
		SessionTTL:  5,
		Logger:      zap.NewNop(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Connect(ctx); err != nil {
		t.Skipf("etcd not available: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// TestFullIntegrationWithEtcd 完整端到端测试
// 链路: Stub → Channel → etcd Lookup → Protocol → Provider → Middleware → Arith
func TestFullIntegrationWithEtcd(t *testing.T) {
	advertiser := connectEtcd(t)
	caller := connectEtcd(t)
	stub := setupWith(t, advertiser, caller)

	ctx := context.Background()
	got, err := stub.Add(ctx, 3, 5)
	if err != nil {
		t.Fatalf("Call Add failed: %v", err)
	}
	if got != 8 {
		t.Fatalf("Add: expect 8, got %d", got)
	}

	got, err = stub.Mul(ctx, 4, 6)
	if err != nil {
		t.Fatalf("Call Mul failed: %v", err)
	}
	if got != 24 {
		t.Fatalf("Mul: expect 24, got %d", got)
	}
}
