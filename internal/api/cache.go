package api

import (
	"campus-wallet-go/internal/metrics"
	"campus-wallet-go/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// balanceCache is a read-through cache for balance display. Every mutating
// facade call removes the affected users; entries also expire after the TTL.
type balanceCache struct {
	lru *expirable.LRU[int64, models.UserBalance]
}

func newBalanceCache(cfg models.CacheConfig) *balanceCache {
	if cfg.Size <= 0 {
		return &balanceCache{}
	}
	return &balanceCache{lru: expirable.NewLRU[int64, models.UserBalance](cfg.Size, nil, cfg.TTL)}
}

func (c *balanceCache) get(userId int64) (models.UserBalance, bool) {
	if c.lru == nil {
		return models.UserBalance{}, false
	}
	balance, ok := c.lru.Get(userId)
	if ok {
		metrics.BalanceCacheTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.BalanceCacheTotal.WithLabelValues("miss").Inc()
	}
	return balance, ok
}

func (c *balanceCache) put(balance models.UserBalance) {
	if c.lru == nil {
		return
	}
	c.lru.Add(balance.UserId, balance)
}

func (c *balanceCache) invalidate(userIds ...int64) {
	if c.lru == nil {
		return
	}
	for _, id := range userIds {
		c.lru.Remove(id)
	}
}
