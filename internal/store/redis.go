package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pointdeck/pointdeck/internal/domain"
)

const keyPrefix = "pointdeck"

// Redis is a RoomStore backed by a Redis instance. Rooms are stored as JSON
// under room:<code>; a conn:<id> key per connected user serves the
// find-by-connection lookup.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func roomKey(code domain.RoomCode) string   { return fmt.Sprintf("%s:room:%s", keyPrefix, code) }
func connKey(id domain.ConnectionID) string { return fmt.Sprintf("%s:conn:%s", keyPrefix, id) }

func (s *Redis) Insert(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", room.Code, err)
	}
	ok, err := s.client.SetNX(ctx, roomKey(room.Code), data, 0).Result()
	if err != nil {
		return fmt.Errorf("insert room %s: %w", room.Code, err)
	}
	if !ok {
		return domain.ErrRoomExists
	}
	return s.indexConnections(ctx, room)
}

func (s *Redis) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	data, err := s.client.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}
	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("unmarshal room %s: %w", code, err)
	}
	return &room, nil
}

func (s *Redis) Save(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", room.Code, err)
	}
	if err := s.client.Set(ctx, roomKey(room.Code), data, 0).Err(); err != nil {
		return fmt.Errorf("save room %s: %w", room.Code, err)
	}
	return s.indexConnections(ctx, room)
}

func (s *Redis) Delete(ctx context.Context, code domain.RoomCode) error {
	room, err := s.Get(ctx, code)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	keys := []string{roomKey(code)}
	for _, u := range room.Users {
		keys = append(keys, connKey(u.ConnectionID))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	return nil
}

func (s *Redis) FindByConnection(ctx context.Context, id domain.ConnectionID) (*domain.Room, error) {
	code, err := s.client.Get(ctx, connKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve connection %s: %w", id, err)
	}
	room, err := s.Get(ctx, domain.RoomCode(code))
	if err != nil {
		return nil, err
	}
	if room.UserByConnection(id) == nil {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *Redis) StaleRooms(ctx context.Context, cutoff time.Time) ([]*domain.Room, error) {
	var out []*domain.Room
	iter := s.client.Scan(ctx, 0, keyPrefix+":room:*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan rooms: %w", err)
		}
		var room domain.Room
		if err := json.Unmarshal(data, &room); err != nil {
			return nil, fmt.Errorf("unmarshal room %s: %w", iter.Val(), err)
		}
		if room.LastActivity.Before(cutoff) && len(room.ConnectedUsers()) == 0 {
			out = append(out, &room)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan rooms: %w", err)
	}
	return out, nil
}

func (s *Redis) Count(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, keyPrefix+":room:*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count rooms: %w", err)
	}
	return n, nil
}

// indexConnections keeps the conn:<id> lookup keys consistent with the
// room's user list after every write.
func (s *Redis) indexConnections(ctx context.Context, room *domain.Room) error {
	pipe := s.client.Pipeline()
	for _, u := range room.Users {
		if u.Connected {
			pipe.Set(ctx, connKey(u.ConnectionID), string(room.Code), 0)
		} else {
			pipe.Del(ctx, connKey(u.ConnectionID))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index connections for room %s: %w", room.Code, err)
	}
	return nil
}
