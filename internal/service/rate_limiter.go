package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChatRateLimiter limita turnos por sesion en una ventana con decaimiento.
// No es un tope de por vida: al vencer la ventana el contador se resetea.
type ChatRateLimiter interface {
	Allow(sessionID string) bool
}

const redisChatAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisChatRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

func NewRedisChatRateLimiter(client *redis.Client, window time.Duration, max int) ChatRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	if max <= 0 {
		max = 30
	}
	return &redisChatRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "chat:rl:",
	}
}

func (l *redisChatRateLimiter) Allow(sessionID string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key := strings.TrimSpace(sessionID)
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 600
	}
	count, err := l.client.Eval(ctx, redisChatAllowScript, []string{l.prefix + key}, seconds).Int()
	if err != nil {
		// Redis caido no debe tirar el servicio: se permite y se confia
		// en los demas guardrails.
		return true
	}
	return count <= l.max
}

type memoryWindow struct {
	count   int
	resetAt time.Time
}

// memoryChatRateLimiter es el fallback sin Redis: misma semantica de
// ventana fija con decaimiento, en memoria de proceso.
type memoryChatRateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string]memoryWindow
}

func NewMemoryChatRateLimiter(window time.Duration, max int) ChatRateLimiter {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if max <= 0 {
		max = 30
	}
	return &memoryChatRateLimiter{
		window:  window,
		max:     max,
		entries: make(map[string]memoryWindow),
	}
}

func (l *memoryChatRateLimiter) Allow(sessionID string) bool {
	key := strings.TrimSpace(sessionID)
	if key == "" {
		return false
	}

	now := time.Now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.entries[key]
	if !ok || now.After(w.resetAt) {
		l.entries[key] = memoryWindow{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	w.count++
	l.entries[key] = w
	return w.count <= l.max
}
