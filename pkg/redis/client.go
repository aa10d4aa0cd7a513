package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client Redis客户端包装器，用于向其他进程发布歌词状态
type Client struct {
	rdb     *redis.Client
	channel string
}

// NewClient 创建新的Redis客户端并测试连接
func NewClient(addr string, password string, db int, channel string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	client := newClient(rdb, channel)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		rdb.Close()
		return nil, err
	}

	return client, nil
}

func newClient(rdb *redis.Client, channel string) *Client {
	if channel == "" {
		channel = "lyrik"
	}
	return &Client{rdb: rdb, channel: channel}
}

// Ping 测试连接
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Channel 发布使用的频道
func (c *Client) Channel() string {
	return c.channel
}

// Publish 向频道发布一条消息，返回收到消息的订阅者数量
func (c *Client) Publish(ctx context.Context, message []byte) (int64, error) {
	return c.rdb.Publish(ctx, c.channel, message).Result()
}

// Subscribe 订阅发布频道
func (c *Client) Subscribe(ctx context.Context) *redis.PubSub {
	return c.rdb.Subscribe(ctx, c.channel)
}

// Watch 订阅发布频道并对每条消息调用 fn，直到 ctx 结束
func (c *Client) Watch(ctx context.Context, fn func(payload string)) error {
	sub := c.Subscribe(ctx)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn(msg.Payload)
		}
	}
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
