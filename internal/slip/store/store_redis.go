package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"slipdesk/internal/slip/models"
	"slipdesk/pkg/platform/sentinel"
)

const (
	slipKeyPrefix   = "slip:code:"
	activeKeyPrefix = "slip:active:"
	pendingPrefix   = "slip:pending:"
	expiryZSetKey   = "slip:expiry"

	// Keys linger past the hard expiry so completed slips stay queryable for
	// status probes and receipt lookups.
	retention = 72 * time.Hour
)

// RedisStore persists slips as JSON values. Execute uses WATCH on the slip
// key so a concurrent commit aborts the transaction and surfaces as
// sentinel.ErrConflict, matching the optimistic contract of the other stores.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func slipKey(code string) string { return slipKeyPrefix + code }

func activeKey(account string, txType models.TransactionType) string {
	return activeKeyPrefix + account + ":" + string(txType)
}

func (s *RedisStore) Create(ctx context.Context, slip *models.DepositSlip) error {
	stored := slip.Clone()
	stored.Version = 1
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal slip: %w", err)
	}

	ok, err := s.client.SetNX(ctx, slipKey(slip.Code), raw, retention).Result()
	if err != nil {
		return fmt.Errorf("create slip: %w", err)
	}
	if !ok {
		return fmt.Errorf("slip %s: %w", slip.Code, sentinel.ErrConflict)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, activeKey(slip.Payload.CustomerAccount, slip.Payload.Type), slip.Code, time.Until(slip.ExpiresAt))
	pipe.ZAdd(ctx, expiryZSetKey, redis.Z{Score: float64(slip.ExpiresAt.Unix()), Member: slip.Code})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index slip: %w", err)
	}
	slip.Version = 1
	return nil
}

func (s *RedisStore) FindByCode(ctx context.Context, code string) (*models.DepositSlip, error) {
	raw, err := s.client.Get(ctx, slipKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("slip %s: %w", code, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load slip: %w", err)
	}
	var slip models.DepositSlip
	if err := json.Unmarshal(raw, &slip); err != nil {
		return nil, fmt.Errorf("unmarshal slip: %w", err)
	}
	return &slip, nil
}

func (s *RedisStore) Execute(ctx context.Context, code string, mutate func(*models.DepositSlip) error) (*models.DepositSlip, error) {
	key := slipKey(code)
	var committed *models.DepositSlip

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("slip %s: %w", code, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load slip: %w", err)
		}
		var slip models.DepositSlip
		if err := json.Unmarshal(raw, &slip); err != nil {
			return fmt.Errorf("unmarshal slip: %w", err)
		}
		if err := mutate(&slip); err != nil {
			return err
		}
		slip.Version++

		out, err := json.Marshal(&slip)
		if err != nil {
			return fmt.Errorf("marshal slip: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, retention)
			if slip.Status.IsTerminal() {
				pipe.Del(ctx, activeKey(slip.Payload.CustomerAccount, slip.Payload.Type))
				pipe.ZRem(ctx, expiryZSetKey, code)
				if slip.RetrievedBranch != "" {
					pipe.SRem(ctx, pendingPrefix+slip.RetrievedBranch, code)
				}
			} else if slip.RetrievedBranch != "" {
				pipe.SAdd(ctx, pendingPrefix+slip.RetrievedBranch, code)
				pipe.Expire(ctx, pendingPrefix+slip.RetrievedBranch, retention)
			}
			return nil
		})
		if err != nil {
			return err
		}
		committed = &slip
		return nil
	}

	err := s.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("slip %s: %w", code, sentinel.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *RedisStore) FindActiveByAccount(ctx context.Context, account string, txType models.TransactionType) (*models.DepositSlip, error) {
	code, err := s.client.Get(ctx, activeKey(account, txType)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("active slip for account: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("active slip lookup: %w", err)
	}
	slip, err := s.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if slip.Status.IsTerminal() {
		return nil, fmt.Errorf("active slip for account: %w", sentinel.ErrNotFound)
	}
	return slip, nil
}

func (s *RedisStore) ListPending(ctx context.Context, branch string) ([]*models.DepositSlip, error) {
	codes, err := s.client.SMembers(ctx, pendingPrefix+branch).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	out := make([]*models.DepositSlip, 0, len(codes))
	for _, code := range codes {
		slip, err := s.FindByCode(ctx, code)
		if errors.Is(err, sentinel.ErrNotFound) {
			s.client.SRem(ctx, pendingPrefix+branch, code)
			continue
		}
		if err != nil {
			return nil, err
		}
		if slip.Status.InProgress() {
			out = append(out, slip)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *RedisStore) ListExpirable(ctx context.Context, now time.Time) ([]string, error) {
	codes, err := s.client.ZRangeByScore(ctx, expiryZSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expirable: %w", err)
	}
	return codes, nil
}
