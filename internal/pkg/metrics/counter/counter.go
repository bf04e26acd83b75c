package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JulienFabre/TenderWatch/internal/pkg/cache"
	"github.com/JulienFabre/TenderWatch/internal/pkg/database"
)

const listingViewsKey = "listing:counters:views"

// AddListingView increments the pending view counter for a listing in Redis
func AddListingView(listingID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(listingID), 10)
	return cache.GetClient().HIncrBy(ctx, listingViewsKey, field, 1).Err()
}

// FlushAll flushes pending view counters to the database
func FlushAll() error {
	return flushHashToTable(listingViewsKey, "listings", "view_count")
}

// flushHashToTable drains a Redis hash atomically and applies batched increments.
// Uses RENAME to a temporary key for atomic drain without losing in-flight increments.
func flushHashToTable(redisKey, table, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		return err
	}

	values, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return rdb.Del(ctx, tmpKey).Err()
	}

	// Group ids by increment so one UPDATE covers each batch
	byDelta := make(map[int64][]string)
	for field, raw := range values {
		delta, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || delta == 0 {
			continue
		}
		byDelta[delta] = append(byDelta[delta], field)
	}

	db := database.GetDB()
	for delta, ids := range byDelta {
		sort.Strings(ids)
		query := fmt.Sprintf("UPDATE %s SET %s = %s + ? WHERE id IN ?", table, column, column)
		if err := db.Exec(query, delta, ids).Error; err != nil {
			return err
		}
	}

	return rdb.Del(ctx, tmpKey).Err()
}
