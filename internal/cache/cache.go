// Package cache 把分析结果按 "内容哈希 + 分析参数" 存入本地 badger 数据库，
// 值使用 msgpack 编码。同一文件用相同参数再次分析时直接返回缓存。
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"tabcraft/internal/instrument"
	"tabcraft/internal/types"
)

// ErrMiss 缓存未命中
var ErrMiss = errors.New("缓存未命中")

// keyPrefix 键前缀，值格式变化时递增版本号
const keyPrefix = "tabcraft:1:"

// Options 缓存配置
type Options struct {
	// Dir 数据目录，InMemory 为 false 时必填
	Dir string
	// InMemory 仅在内存中运行，用于测试
	InMemory bool
	// TTL 条目有效期，0 表示永不过期
	TTL time.Duration
	// Logger 为空时把 badger 日志转发到 slog
	Logger badger.Logger
}

// Cache 分析结果缓存
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Fingerprint 影响分析结果的全部参数。
// Tuning 为解析后的定弦，修改自定义乐器的弦或品数后旧条目不再命中。
type Fingerprint struct {
	Instrument string                `msgpack:"instrument"`
	Tuning     instrument.Tuning     `msgpack:"tuning"`
	Stem       types.StemKind        `msgpack:"stem"`
	Analysis   types.AnalysisOptions `msgpack:"analysis"`
	Tab        types.TabOptions      `msgpack:"tab"`
}

type entry struct {
	CreatedAt time.Time      `msgpack:"created_at"`
	Analysis  types.Analysis `msgpack:"analysis"`
}

// Open 打开缓存
func Open(opts Options) (*Cache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("cache: 磁盘模式需要指定目录")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(slogLogger{})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("打开缓存失败: %w", err)
	}
	return &Cache{db: db, ttl: opts.TTL}, nil
}

// Close 关闭缓存
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key 由内容哈希和参数指纹生成缓存键
func Key(contentHash string, fp Fingerprint) ([]byte, error) {
	raw, err := msgpack.Marshal(fp)
	if err != nil {
		return nil, fmt.Errorf("编码缓存指纹失败: %w", err)
	}
	sum := sha256.Sum256(raw)
	return []byte(keyPrefix + contentHash + ":" + hex.EncodeToString(sum[:8])), nil
}

// HashFile 计算文件内容的 SHA-256
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f)
}

// HashReader 计算数据流的 SHA-256
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("计算内容哈希失败: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get 读取缓存，不存在或已过期时返回 ErrMiss
func (c *Cache) Get(_ context.Context, key []byte) (*types.Analysis, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("读取缓存失败: %w", err)
	}

	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		// 损坏的条目当作未命中，下次写入时覆盖
		slog.Warn("缓存条目无法解码", "key", string(key), "error", err)
		return nil, ErrMiss
	}
	return &e.Analysis, nil
}

// Put 写入缓存
func (c *Cache) Put(_ context.Context, key []byte, analysis *types.Analysis) error {
	raw, err := msgpack.Marshal(entry{CreatedAt: time.Now().UTC(), Analysis: *analysis})
	if err != nil {
		return fmt.Errorf("编码缓存条目失败: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, raw)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Len 返回当前条目数
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear 删除全部条目
func (c *Cache) Clear() error {
	if err := c.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("清空缓存失败: %w", err)
	}
	return nil
}

// slogLogger 把 badger 日志转发到 slog，info 及以下降为 debug
type slogLogger struct{}

func (slogLogger) Errorf(f string, v ...interface{}) {
	slog.Error(fmt.Sprintf("[badger] "+f, v...))
}
func (slogLogger) Warningf(f string, v ...interface{}) {
	slog.Warn(fmt.Sprintf("[badger] "+f, v...))
}
func (slogLogger) Infof(f string, v ...interface{}) {
	slog.Debug(fmt.Sprintf("[badger] "+f, v...))
}
func (slogLogger) Debugf(string, ...interface{}) {}
