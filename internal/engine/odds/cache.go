package odds

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuoteCache guarda cotações já computadas no Redis. Só o caminho de
// exibição usa isso; a colocação sempre recomputa.
type QuoteCache struct {
	Rdb *redis.Client
	TTL time.Duration
}

func NewQuoteCache(r *redis.Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{Rdb: r, TTL: ttl}
}

// Chave "quote:{rulesVersion}:{modulo}:{count}:{larger}:{wager}" => prêmio em units.
// A versão das regras na chave invalida o cache quando a governança muda algo.
func quoteKey(rulesVersion int, wagerUnits, modulo, winningCount int64, isLarger bool) string {
	return fmt.Sprintf("quote:%d:%d:%d:%t:%d", rulesVersion, modulo, winningCount, isLarger, wagerUnits)
}

func (c *QuoteCache) Get(ctx context.Context, rulesVersion int, wagerUnits, modulo, winningCount int64, isLarger bool) (int64, bool) {
	val, err := c.Rdb.Get(ctx, quoteKey(rulesVersion, wagerUnits, modulo, winningCount, isLarger)).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *QuoteCache) Set(ctx context.Context, rulesVersion int, wagerUnits, modulo, winningCount int64, isLarger bool, winUnits int64) {
	_ = c.Rdb.Set(ctx, quoteKey(rulesVersion, wagerUnits, modulo, winningCount, isLarger),
		strconv.FormatInt(winUnits, 10), c.TTL).Err()
}
