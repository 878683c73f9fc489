package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/user/orderbot/internal/types"
)

// OrderLog is an append-only record of completed orders.
type OrderLog interface {
	types.OrderRecorder
	// Tail returns up to limit of the most recent orders, oldest first.
	Tail(ctx context.Context, limit int) ([]*types.OrderRecord, error)
}

// OpenOrderLog returns the order log that lives next to store: a redis list
// for RedisStore, a slice for MemoryStore, and orders.jsonl in dataDir
// otherwise.
func OpenOrderLog(store Store, dataDir string) OrderLog {
	switch s := store.(type) {
	case *RedisStore:
		return NewRedisOrderLog(s.client)
	case *MemoryStore:
		return NewMemoryOrderLog()
	default:
		return NewFileOrderLog(filepath.Join(dataDir, "orders.jsonl"))
	}
}

// FileOrderLog keeps one JSON document per line.
type FileOrderLog struct {
	path string
	mu   sync.Mutex
}

func NewFileOrderLog(path string) *FileOrderLog {
	return &FileOrderLog{path: path}
}

// count reads the log and counts lines. Caller must hold the lock.
func (l *FileOrderLog) count() (int64, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open order log: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan order log: %w", err)
	}
	return count, nil
}

// Record appends order with the next sequence number.
func (l *FileOrderLog) Record(ctx context.Context, order *types.OrderRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create order log dir: %w", err)
	}

	existing, err := l.count()
	if err != nil {
		return err
	}
	order.Seq = existing + 1

	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open order log: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write order: %w", err)
	}
	return nil
}

func (l *FileOrderLog) Tail(ctx context.Context, limit int) ([]*types.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open order log: %w", err)
	}
	defer f.Close()

	var orders []*types.OrderRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var order types.OrderRecord
		if err := json.Unmarshal(scanner.Bytes(), &order); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		orders = append(orders, &order)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan order log: %w", err)
	}
	return lastN(orders, limit), nil
}

const (
	redisOrdersKey   = "orders"
	redisOrderSeqKey = "orders:seq"
)

// RedisOrderLog appends orders to a redis list.
type RedisOrderLog struct {
	client redis.UniversalClient
}

func NewRedisOrderLog(client redis.UniversalClient) *RedisOrderLog {
	return &RedisOrderLog{client: client}
}

func (l *RedisOrderLog) Record(ctx context.Context, order *types.OrderRecord) error {
	seq, err := l.client.Incr(ctx, redisOrderSeqKey).Result()
	if err != nil {
		return fmt.Errorf("redis incr %s: %w", redisOrderSeqKey, err)
	}
	order.Seq = seq

	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	if err := l.client.RPush(ctx, redisOrdersKey, data).Err(); err != nil {
		return fmt.Errorf("redis rpush %s: %w", redisOrdersKey, err)
	}
	return nil
}

func (l *RedisOrderLog) Tail(ctx context.Context, limit int) ([]*types.OrderRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	items, err := l.client.LRange(ctx, redisOrdersKey, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", redisOrdersKey, err)
	}
	orders := make([]*types.OrderRecord, 0, len(items))
	for _, item := range items {
		var order types.OrderRecord
		if err := json.Unmarshal([]byte(item), &order); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		orders = append(orders, &order)
	}
	return orders, nil
}

// MemoryOrderLog keeps orders in process memory.
type MemoryOrderLog struct {
	mu     sync.Mutex
	orders []types.OrderRecord
}

func NewMemoryOrderLog() *MemoryOrderLog {
	return &MemoryOrderLog{}
}

func (l *MemoryOrderLog) Record(_ context.Context, order *types.OrderRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	order.Seq = int64(len(l.orders) + 1)
	l.orders = append(l.orders, *order)
	return nil
}

func (l *MemoryOrderLog) Tail(_ context.Context, limit int) ([]*types.OrderRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*types.OrderRecord, 0, len(l.orders))
	for i := range l.orders {
		order := l.orders[i]
		out = append(out, &order)
	}
	return lastN(out, limit), nil
}

func lastN(orders []*types.OrderRecord, limit int) []*types.OrderRecord {
	if limit <= 0 {
		return nil
	}
	if len(orders) > limit {
		return orders[len(orders)-limit:]
	}
	return orders
}
