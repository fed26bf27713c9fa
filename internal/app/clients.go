package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/scoolish-backend/internal/platform/gcp"
	"github.com/yungbote/scoolish-backend/internal/platform/keyrotation"
	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/platform/webfetch"
	"github.com/yungbote/scoolish-backend/internal/realtime/bus"
)

type Clients struct {
	Redis     *goredis.Client
	SSEBus    bus.Bus
	Keys      *keyrotation.Manager
	LLM       *llm.Client
	Fetch     *webfetch.Client
	Bucket    gcp.BucketService
	Document  gcp.Document
	Speech    gcp.Speech
	Video     gcp.Video
	Vision    gcp.Vision
	closeFunc []func() error
}

// wireClients builds every outbound client. Redis and the Google AI clients
// are optional: a missing one disables its feature instead of failing boot.
func wireClients(log *logger.Logger, cfg Config) (*Clients, error) {
	log.Info("Wiring clients...")
	c := &Clients{Fetch: webfetch.New(nil)}

	rdb, err := openRedis(cfg)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		c.Redis = rdb
		c.SSEBus = bus.NewRedisBusWithClient(rdb, cfg.RedisChannel, log)
		c.closeFunc = append(c.closeFunc, rdb.Close)
	}

	keyCfg, err := keyrotation.LoadFromEnv()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("key rotation config: %w", err)
	}
	var counter keyrotation.Counter
	if keyCfg.Mode == keyrotation.ModeRedis {
		if rdb != nil {
			counter = keyrotation.NewRedisCounterFromClient(rdb, keyCfg.CounterKey)
		} else {
			rc, err := keyrotation.NewRedisCounter(keyCfg.RedisURL, keyCfg.CounterKey)
			if err != nil {
				c.Close()
				return nil, fmt.Errorf("key rotation counter: %w", err)
			}
			counter = rc
			c.closeFunc = append(c.closeFunc, rc.Close)
		}
	}
	c.Keys, err = keyrotation.New(keyCfg, counter, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init key manager: %w", err)
	}
	c.LLM, err = llm.New(c.Keys, cfg.LLM, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	bucket, err := resolveBucketService(log)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Bucket = bucket

	c.Vision = optional(log, "vision", gcp.NewVision, c)
	c.Speech = optional(log, "speech", gcp.NewSpeech, c)
	c.Video = optional(log, "video intelligence", gcp.NewVideo, c)
	if docCfg, ok := gcp.DocumentConfigFromEnv(); ok {
		doc, err := gcp.NewDocument(log, docCfg)
		if err != nil {
			log.Warn("Document AI disabled", "error", err)
		} else {
			c.Document = doc
			c.closeFunc = append(c.closeFunc, doc.Close)
		}
	}
	return c, nil
}

type closer interface{ Close() error }

// optional builds a Google client and logs instead of failing when
// credentials are absent.
func optional[T closer](log *logger.Logger, name string, build func(*logger.Logger) (T, error), c *Clients) T {
	client, err := build(log)
	if err != nil {
		var zero T
		log.Warn("Google client disabled", "client", name, "error", err)
		return zero
	}
	c.closeFunc = append(c.closeFunc, client.Close)
	return client
}

// openRedis prefers REDIS_URL and falls back to REDIS_ADDR. Neither set means
// no shared Redis.
func openRedis(cfg Config) (*goredis.Client, error) {
	var opts *goredis.Options
	switch {
	case strings.TrimSpace(cfg.RedisURL) != "":
		o, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = o
	case strings.TrimSpace(cfg.RedisAddr) != "":
		opts = &goredis.Options{Addr: cfg.RedisAddr}
	default:
		return nil, nil
	}
	opts.DialTimeout = 5 * time.Second
	rdb := goredis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	for i := len(c.closeFunc) - 1; i >= 0; i-- {
		_ = c.closeFunc[i]()
	}
	c.closeFunc = nil
}
