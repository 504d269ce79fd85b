package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/patrickmn/go-cache"
)

// Cache 全局进程级缓存（热门榜单、类型映射表这类短周期数据）
var Cache *cache.Cache

// InitCache 初始化缓存
func InitCache() {
	// 默认过期时间5分钟，清理间隔10分钟
	Cache = cache.New(5*time.Minute, 10*time.Minute)
}

// CacheGet 获取缓存值
func CacheGet(key string) (interface{}, bool) {
	return Cache.Get(key)
}

// CacheSet 设置缓存值
func CacheSet(key string, value interface{}, duration time.Duration) {
	Cache.Set(key, value, duration)
}

// CacheDelete 删除缓存
func CacheDelete(key string) {
	Cache.Delete(key)
}

// cacheItem 包装实际的数据，增加过期时间
type cacheItem[V any] struct {
	Value     V
	ExpiredAt time.Time
}

// TTLCache 带 TTL 的 LRU 缓存，电影元数据缓存用它挡在提供方前面
type TTLCache[K comparable, V any] struct {
	storage *lru.Cache[K, cacheItem[V]]
	ttl     time.Duration
}

// NewTTLCache size 是最大缓存条数（如 1000），ttl 是数据有效期（如 24小时）
func NewTTLCache[K comparable, V any](size int, ttl time.Duration) *TTLCache[K, V] {
	// lru.New 是线程安全的
	c, _ := lru.New[K, cacheItem[V]](size)
	return &TTLCache[K, V]{
		storage: c,
		ttl:     ttl,
	}
}

// Set 写入（LRU 中 Add 会自动处理更新）
func (c *TTLCache[K, V]) Set(key K, value V) {
	item := cacheItem[V]{
		Value:     value,
		ExpiredAt: time.Now().Add(c.ttl),
	}
	c.storage.Add(key, item)
}

// Get 读取（带过期检查）
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}

	// 过期即删除
	if time.Now().After(item.ExpiredAt) {
		c.storage.Remove(key)
		return zero, false
	}

	return item.Value, true
}

// Delete 删除
func (c *TTLCache[K, V]) Delete(key K) {
	c.storage.Remove(key)
}

// Clear 清空
func (c *TTLCache[K, V]) Clear() {
	c.storage.Purge()
}

// Len 当前条数
func (c *TTLCache[K, V]) Len() int {
	return c.storage.Len()
}
