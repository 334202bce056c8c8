// Package id 提供会话与请求级别的唯一标识生成。
//
// 生成的 ID 为 ULID(Universally Unique Lexicographically Sortable
// Identifier),按生成时间字典序排序,适合作为会话 ID 与事务追踪 ID。
package id

import (
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrInvalidID 表示字符串不是合法的 ULID。
var ErrInvalidID = errors.New("id: invalid ulid string")

// Generator 生成单调递增的 ULID。
// 同一毫秒内连续生成时递增随机部分,保证同进程内严格有序。
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// Option 配置 Generator。
type Option func(*Generator)

// WithReader 替换随机源,测试时可注入确定性 reader。
func WithReader(r io.Reader) Option {
	return func(g *Generator) {
		g.entropy = ulid.Monotonic(r, 0)
	}
}

// NewGenerator 创建 ULID 生成器。
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var (
	defaultGen  *Generator
	defaultOnce sync.Once
)

// New 使用进程级默认生成器生成一个 ULID。
func New() string {
	defaultOnce.Do(func() {
		defaultGen = NewGenerator()
	})
	return defaultGen.Generate()
}

// Generate 生成一个 26 字符的 ULID。
func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Now(), g.entropy).String()
}

// Timestamp 解析 ULID 的时间部分。
func Timestamp(s string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, ErrInvalidID
	}
	return time.UnixMilli(int64(parsed.Time())), nil
}

// IsValid 检查字符串是否为合法的 ULID。
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
