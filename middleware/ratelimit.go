package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LoginRateLimit 登录接口限流中间件
// 每 IP 每 window 内最多 maxAttempts 次尝试，超过则返回 429
func LoginRateLimit(maxAttempts int, window time.Duration) gin.HandlerFunc {
	type entry struct {
		timestamps []time.Time
	}
	var (
		mu    sync.Mutex
		store = make(map[string]*entry)
	)
	// 定期清理过期数据，避免 map 无限增长
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			cutoff := time.Now().Add(-window)
			for ip, e := range store {
				kept := e.timestamps[:0]
				for _, ts := range e.timestamps {
					if ts.After(cutoff) {
						kept = append(kept, ts)
					}
				}
				if len(kept) == 0 {
					delete(store, ip)
				} else {
					e.timestamps = kept
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()
		mu.Lock()
		e, ok := store[ip]
		if !ok {
			e = &entry{}
			store[ip] = e
		}
		// 只保留窗口内的记录
		cutoff := now.Add(-window)
		kept := e.timestamps[:0]
		for _, ts := range e.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		e.timestamps = kept
		if len(e.timestamps) >= maxAttempts {
			mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "登录尝试过于频繁，请稍后再试",
			})
			c.Abort()
			return
		}
		e.timestamps = append(e.timestamps, now)
		mu.Unlock()
		c.Next()
	}
}
