package musiccache

import (
	"bufio"
	"errors"
	"fmt"
	"lyrik/pkg/fileutil"
	"os"
	"strings"
	"sync"
)

const (
	kvSep    = " => "
	kvFormat = "%s" + kvSep + "%s"
)

var ErrNotFound = errors.New("not found")

// Cache 以 "key => value" 行格式持久化到文件的字符串缓存
type Cache struct {
	path  string
	mu    sync.Mutex
	items map[string]string
}

// New 从 path 加载缓存，文件不存在时返回空缓存
func New(path string) (*Cache, error) {
	c := &Cache{path: path, items: make(map[string]string)}

	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("failed to open cache file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		kv := strings.SplitN(scanner.Text(), kvSep, 2)
		if len(kv) != 2 {
			continue
		}
		c.items[kv[0]] = kv[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache file %s: %w", path, err)
	}
	return c, nil
}

// Add 添加一项，已存在的 key 不会被覆盖
func (c *Cache) Add(key, value string) error {
	if strings.Contains(key, "\n") || strings.Contains(value, "\n") {
		return fmt.Errorf("cache entries must be single-line")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		return nil
	}
	c.items[key] = value
	return fileutil.AppendLine(c.path, fmt.Sprintf(kvFormat, key, value), 0644)
}

func (c *Cache) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
