package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/samber/lo"

	models "github.com/CodeAndHammer/wordly/internal/models"
	util "github.com/CodeAndHammer/wordly/internal/util"
)

const (
	defaultKeyPrefix    = "wordly:"
	defaultTxRetries    = 50
	deletedRoomSentinel = "null"
)

// RedisStore keeps each room as one JSON document and relies on
// WATCH/MULTI/EXEC for compare-and-swap. Every committed write is published
// on the room's feed channel inside the same transaction.
type RedisStore struct {
	rdb        *redis.Client
	prefix     string
	ttl        time.Duration
	maxRetries int
}

type RedisOption func(*RedisStore)

// WithRoomTTL expires idle room documents; zero keeps them forever.
func WithRoomTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: defaultKeyPrefix, maxRetries: defaultTxRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", addr, err)
	}
	util.LogInfo("Connected to Redis at %s (db %d)", addr, db)
	return rdb, nil
}

func (s *RedisStore) roomKey(id string) string { return s.prefix + "room:" + id }
func (s *RedisStore) feedKey(id string) string { return s.prefix + "room:" + id + ":feed" }
func (s *RedisStore) indexKey() string         { return s.prefix + "rooms" }

func decodeRoom(data []byte) (*models.Room, error) {
	var room *models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return room, nil
}

func (s *RedisStore) Get(ctx context.Context, roomID string) (*models.Room, error) {
	data, err := s.rdb.Get(ctx, s.roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return decodeRoom(data)
}

func (s *RedisStore) Set(ctx context.Context, room *models.Room) error {
	_, err := s.Transact(ctx, room.ID, setMutator(room))
	return err
}

func (s *RedisStore) Update(ctx context.Context, roomID string, patch Patch) error {
	_, err := s.Transact(ctx, roomID, patchMutator(patch))
	return err
}

func (s *RedisStore) Delete(ctx context.Context, roomID string) error {
	_, err := s.Transact(ctx, roomID, deleteMutator)
	return err
}

func (s *RedisStore) Transact(ctx context.Context, roomID string, fn Mutator) (*models.Room, error) {
	key := s.roomKey(roomID)
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var result *models.Room
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			var current *models.Room
			data, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				if current, err = decodeRoom(data); err != nil {
					return err
				}
			}

			next, err := fn(current.Clone())
			if errors.Is(err, ErrNoop) {
				result = current
				return nil
			}
			if err != nil {
				return err
			}
			if next == nil && current == nil {
				return nil
			}

			var payload []byte
			if next != nil {
				next.ID = roomID
				next.Version = 1
				if current != nil {
					next.Version = current.Version + 1
				}
				if payload, err = json.Marshal(next); err != nil {
					return fmt.Errorf("encode room: %w", err)
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if next == nil {
					pipe.Del(ctx, key)
					pipe.SRem(ctx, s.indexKey(), roomID)
					pipe.Publish(ctx, s.feedKey(roomID), deletedRoomSentinel)
					return nil
				}
				pipe.Set(ctx, key, payload, s.ttl)
				pipe.SAdd(ctx, s.indexKey(), roomID)
				pipe.Publish(ctx, s.feedKey(roomID), payload)
				return nil
			})
			result = next
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("room %s: %w", roomID, ErrConflict)
}

func (s *RedisStore) List(ctx context.Context) ([]*models.Room, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Room{}, nil
	}
	values, err := s.rdb.MGet(ctx, lo.Map(ids, func(id string, _ int) string { return s.roomKey(id) })...).Result()
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}

	rooms := make([]*models.Room, 0, len(values))
	var expired []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		room, err := decodeRoom([]byte(raw))
		if err != nil {
			util.LogWarn("Skipping undecodable room %s: %v", ids[i], err)
			continue
		}
		rooms = append(rooms, room)
	}
	if len(expired) > 0 {
		if err := s.rdb.SRem(ctx, s.indexKey(), expired...).Err(); err != nil {
			util.LogWarn("Failed to prune %d expired rooms from index: %v", len(expired), err)
		}
	}
	return rooms, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, roomID string, fn func(*models.Room)) (func(), error) {
	ps := s.rdb.Subscribe(ctx, s.feedKey(roomID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
	}

	room, err := s.Get(ctx, roomID)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}

	f := newFeed(fn)
	f.push(room)

	subCtx, cancel := context.WithCancel(ctx)
	unsubscribe := func() {
		cancel()
		f.close()
	}
	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-f.done:
				return
			case msg, ok := <-ch:
				if !ok {
					f.close()
					return
				}
				next, err := decodeRoom([]byte(msg.Payload))
				if err != nil {
					util.LogWarn("Dropping malformed feed message for room %s: %v", roomID, err)
					continue
				}
				f.push(next)
			}
		}
	}()
	return unsubscribe, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
