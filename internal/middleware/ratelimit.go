package middleware

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"tabibdesk/internal/rpc"
)

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	r       rate.Limit
	burst   int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*client),
		r:       rate.Limit(rps),
		burst:   burst,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go rl.sweep(time.Minute, 3*time.Minute)
	return rl
}

// cleanup stale entries every minute until Stop
func (rl *RateLimiter) sweep(every, idle time.Duration) {
	defer close(rl.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-t.C:
			rl.mu.Lock()
			for ip, c := range rl.clients {
				if now.Sub(c.seen) > idle {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the sweeper and waits for it. Safe to call twice.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	<-rl.done
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if c, ok := rl.clients[ip]; ok {
		c.seen = time.Now()
		return c.lim
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.clients[ip] = &client{lim: l, seen: time.Now()}
	return l
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool { return rl.get(key).Allow() }

// methods that should be rate limited
var limited = map[string]bool{
	rpc.FullMethod("Register"): true,
	rpc.FullMethod("Login"):    true,
	rpc.FullMethod("Refresh"):  true,
}

func RateLimit(rl *RateLimiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !limited[info.FullMethod] {
			return next(ctx, req)
		}
		ip := "unknown"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			ip = host(p.Addr.String())
		}
		if !rl.Allow(ip) {
			return nil, status.Error(codes.ResourceExhausted, "too many requests")
		}
		return next(ctx, req)
	}
}

// host drops the port so one client's connections share a bucket.
func host(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}
