package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/redis/go-redis/v9"

	"planner/internal/core"
)

const redisKeyPrefix = "planner:session:"

// RedisStore keeps plans as JSON in Redis so several planner instances can
// share sessions. Every Save and Load resets the key's TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client, ttl: opts.TTL}, nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Plan, error) {
	data, err := s.client.GetEx(ctx, redisKeyPrefix+id, s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decodePlan(data)
}

func (s *RedisStore) Save(ctx context.Context, id string, plan *Plan) error {
	data, err := encodePlan(plan)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+id, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping checks the connection, for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Stored form of a plan. Start dates are kept as strings so an unset date
// survives the round trip.
type (
	planRecord struct {
		People []core.Person `json:"people"`
		Loans  []loanRecord  `json:"loans"`
	}

	loanRecord struct {
		Name         string             `json:"name"`
		Principal    float64            `json:"principal"`
		AnnualRate   float64            `json:"annual_rate"`
		Term         int                `json:"term"`
		Unit         core.TermUnit      `json:"unit"`
		StartDate    string             `json:"start_date,omitempty"`
		Currency     core.Currency      `json:"currency"`
		Stakeholders []string           `json:"stakeholders"`
		ShareMode    core.ShareMode     `json:"share_mode"`
		CustomShares map[string]float64 `json:"custom_shares,omitempty"`
	}
)

func encodePlan(p *Plan) ([]byte, error) {
	rec := planRecord{People: p.People, Loans: make([]loanRecord, len(p.Loans))}
	for i, l := range p.Loans {
		lr := loanRecord{
			Name:         l.Name,
			Principal:    l.Terms.Principal,
			AnnualRate:   l.Terms.AnnualRate,
			Term:         l.Terms.Term,
			Unit:         l.Terms.Unit,
			Currency:     l.Currency,
			Stakeholders: l.Stakeholders,
			ShareMode:    l.ShareMode,
			CustomShares: l.CustomShares,
		}
		if !l.Terms.StartDate.IsZero() {
			lr.StartDate = l.Terms.StartDate.String()
		}
		rec.Loans[i] = lr
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

func decodePlan(data []byte) (*Plan, error) {
	var rec planRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	p := &Plan{People: rec.People, Loans: make([]core.Loan, len(rec.Loans))}
	for i, lr := range rec.Loans {
		loan := core.Loan{
			Name: lr.Name,
			Terms: core.LoanTerms{
				Principal:  lr.Principal,
				AnnualRate: lr.AnnualRate,
				Term:       lr.Term,
				Unit:       lr.Unit,
			},
			Currency:     lr.Currency,
			Stakeholders: lr.Stakeholders,
			ShareMode:    lr.ShareMode,
			CustomShares: lr.CustomShares,
		}
		if lr.StartDate != "" {
			d, err := civil.ParseDate(lr.StartDate)
			if err != nil {
				return nil, fmt.Errorf("failed to decode session: loan %q: %w", lr.Name, err)
			}
			loan.Terms.StartDate = d
		}
		p.Loans[i] = loan
	}
	return p, nil
}
