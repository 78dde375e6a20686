package projection

import (
	"context"
	"fmt"
	"strconv"

	rd "github.com/redis/go-redis/v9"
	"github.com/yeremiapane/restaurant-order-engine/models"
)

// ActiveOrderKey is the hash holding one user's current order.
func ActiveOrderKey(userID uint) string {
	return fmt.Sprintf("restaurant:active_order:%d", userID)
}

// KEYS[1]=active order hash, ARGV[1]=order id
const luaMarkCheckout = `
if redis.call('HGET', KEYS[1], 'order_id') == ARGV[1] then
  redis.call('HSET', KEYS[1], 'in_checkout', '1')
  return 1
end
return 0
`

// KEYS[1]=active order hash, ARGV[1]=order id
const luaClear = `
if redis.call('HGET', KEYS[1], 'order_id') == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisStore keeps the projection in one hash per user.
type RedisStore struct {
	rdb *rd.Client
}

func NewRedisStore(rdb *rd.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Set(ctx context.Context, userIDs []uint, e Entry) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	for _, id := range userIDs {
		pipe.HSet(ctx, ActiveOrderKey(id),
			"order_id", strconv.FormatUint(uint64(e.OrderID), 10),
			"restaurant_id", strconv.FormatUint(uint64(e.RestaurantID), 10),
			"order_type", string(e.OrderType),
			"in_checkout", boolFlag(e.InCheckout),
		)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) MarkCheckout(ctx context.Context, userIDs []uint, orderID uint) error {
	return s.evalEach(ctx, luaMarkCheckout, userIDs, orderID)
}

func (s *RedisStore) Clear(ctx context.Context, userIDs []uint, orderID uint) error {
	return s.evalEach(ctx, luaClear, userIDs, orderID)
}

func (s *RedisStore) evalEach(ctx context.Context, script string, userIDs []uint, orderID uint) error {
	arg := strconv.FormatUint(uint64(orderID), 10)
	for _, id := range userIDs {
		if err := s.rdb.Eval(ctx, script, []string{ActiveOrderKey(id)}, arg).Err(); err != nil {
			return fmt.Errorf("active order of user %d: %w", id, err)
		}
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID uint) (Entry, bool, error) {
	m, err := s.rdb.HGetAll(ctx, ActiveOrderKey(userID)).Result()
	if err != nil {
		return Entry{}, false, err
	}
	return parseEntry(userID, m)
}

func parseEntry(userID uint, m map[string]string) (Entry, bool, error) {
	if len(m) == 0 || m["order_id"] == "" {
		return Entry{}, false, nil
	}
	orderID, err := strconv.ParseUint(m["order_id"], 10, 64)
	if err != nil {
		return Entry{}, false, fmt.Errorf("bad order_id %q: %w", m["order_id"], err)
	}
	e := Entry{
		UserID:     userID,
		OrderID:    uint(orderID),
		OrderType:  models.OrderType(m["order_type"]),
		InCheckout: m["in_checkout"] == "1",
	}
	if v := m["restaurant_id"]; v != "" {
		restaurantID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Entry{}, false, fmt.Errorf("bad restaurant_id %q: %w", v, err)
		}
		e.RestaurantID = uint(restaurantID)
	}
	return e, true, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
