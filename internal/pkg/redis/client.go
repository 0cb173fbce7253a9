package redis

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// Client 在 go-redis 之上加了一层 Lua 脚本注册表：
// 脚本在初始化时按名字注册，运行时通过 EVALSHA 执行（go-redis 的 Script 会自动降级到 EVAL）。
type Client struct {
	rdb goredis.UniversalClient

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

func NewClient(addrs []string, password string) *Client {
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    addrs,
		Password: password,
	})
	return &Client{rdb: rdb, scripts: make(map[string]*goredis.Script)}
}

// GetClient 暴露底层客户端，供需要 pipeline 等原生能力的调用方使用。
func (c *Client) GetClient() goredis.UniversalClient {
	return c.rdb
}

// LoadScriptFromContent 注册一段具名 Lua 脚本。重复注册同名脚本会覆盖。
func (c *Client) LoadScriptFromContent(name, content string) error {
	if name == "" || content == "" {
		return errors.New("script name and content must not be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[name] = goredis.NewScript(content)
	return nil
}

// RunScript 按名字执行已注册的脚本。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("lua script %q is not registered", name)
	}
	return script.Run(ctx, c.rdb, keys, args...).Result()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
