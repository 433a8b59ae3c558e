// Package redis opens the client behind the Redis approval store and exports
// its connection pool to Prometheus.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"purchasegate/internal/platform/config"
)

// Client embeds go-redis so the approval store can run WATCH/MULTI
// transactions on it directly.
type Client struct {
	*redis.Client
}

// New dials and pings Redis. An empty URL means Redis is not configured and
// returns (nil, nil).
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	opts.ClientName = "purchasegate"

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout+time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // init failed
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Collector reports pool statistics at scrape time. Register it once per
// client.
func (c *Client) Collector() prometheus.Collector {
	return &poolCollector{client: c.Client}
}

var (
	poolHitsDesc = prometheus.NewDesc(
		"purchasegate_redis_pool_hits_total", "Connections found idle in the pool.", nil, nil)
	poolMissesDesc = prometheus.NewDesc(
		"purchasegate_redis_pool_misses_total", "Connections that had to be dialed.", nil, nil)
	poolTimeoutsDesc = prometheus.NewDesc(
		"purchasegate_redis_pool_timeouts_total", "Waits for a pooled connection that timed out.", nil, nil)
	poolStaleDesc = prometheus.NewDesc(
		"purchasegate_redis_pool_stale_conns_total", "Stale connections removed from the pool.", nil, nil)
	poolTotalDesc = prometheus.NewDesc(
		"purchasegate_redis_pool_total_conns", "Open connections.", nil, nil)
	poolIdleDesc = prometheus.NewDesc(
		"purchasegate_redis_pool_idle_conns", "Idle connections.", nil, nil)
)

type poolCollector struct {
	client *redis.Client
}

func (p *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolHitsDesc
	ch <- poolMissesDesc
	ch <- poolTimeoutsDesc
	ch <- poolStaleDesc
	ch <- poolTotalDesc
	ch <- poolIdleDesc
}

func (p *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.client.PoolStats()
	ch <- prometheus.MustNewConstMetric(poolHitsDesc, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(poolMissesDesc, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(poolTimeoutsDesc, prometheus.CounterValue, float64(s.Timeouts))
	ch <- prometheus.MustNewConstMetric(poolStaleDesc, prometheus.CounterValue, float64(s.StaleConns))
	ch <- prometheus.MustNewConstMetric(poolTotalDesc, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(poolIdleDesc, prometheus.GaugeValue, float64(s.IdleConns))
}
