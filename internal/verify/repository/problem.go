package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"dailycode/internal/common/cache"
	"dailycode/internal/common/db"
	"dailycode/internal/verify/model"

	"github.com/zeromicro/go-zero/core/syncx"
)

const (
	defaultProblemTTL      = 30 * time.Minute
	defaultProblemEmptyTTL = 5 * time.Minute
	problemKeyPrefix       = "verify:problem:"
)

// ProblemRepository reads practice problems.
type ProblemRepository interface {
	Get(ctx context.Context, problemID string) (model.Problem, error)
	Save(ctx context.Context, problem model.Problem) error
	Invalidate(ctx context.Context, problemID string) error
}

// SQLProblemRepository is cache-aside over the problems table. Concurrent
// misses for one id share a single database read.
type SQLProblemRepository struct {
	dbProvider db.Provider
	cache      cache.Cache
	ttl        time.Duration
	emptyTTL   time.Duration
	flight     syncx.SingleFlight
}

func NewProblemRepository(provider db.Provider, cacheClient cache.Cache) *SQLProblemRepository {
	return NewProblemRepositoryWithTTL(provider, cacheClient, defaultProblemTTL, defaultProblemEmptyTTL)
}

func NewProblemRepositoryWithTTL(provider db.Provider, cacheClient cache.Cache, ttl, emptyTTL time.Duration) *SQLProblemRepository {
	if ttl <= 0 {
		ttl = defaultProblemTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultProblemEmptyTTL
	}
	return &SQLProblemRepository{
		dbProvider: provider,
		cache:      cacheClient,
		ttl:        ttl,
		emptyTTL:   emptyTTL,
		flight:     syncx.NewSingleFlight(),
	}
}

func (r *SQLProblemRepository) Get(ctx context.Context, problemID string) (model.Problem, error) {
	v, err := r.flight.Do(problemID, func() (any, error) {
		if r.cache == nil {
			return r.getFromDB(ctx, problemID)
		}
		problem, err := cache.GetWithCached[model.Problem](
			ctx,
			r.cache,
			problemKey(problemID),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(p model.Problem) bool { return p.ID == "" },
			marshalProblem,
			unmarshalProblem,
			func(ctx context.Context) (model.Problem, error) {
				p, err := r.getFromDB(ctx, problemID)
				if errors.Is(err, ErrProblemNotFound) {
					return model.Problem{}, nil
				}
				return p, err
			},
		)
		if err != nil {
			return model.Problem{}, err
		}
		if problem.ID == "" {
			return model.Problem{}, ErrProblemNotFound
		}
		return problem, nil
	})
	if err != nil {
		return model.Problem{}, err
	}
	return v.(model.Problem), nil
}

// Save inserts or replaces a problem and drops its cache entry.
func (r *SQLProblemRepository) Save(ctx context.Context, problem model.Problem) error {
	if problem.ID == "" {
		return errors.New("problem id is required")
	}
	database, err := db.CurrentDatabase(r.dbProvider)
	if err != nil {
		return err
	}
	signature := sql.NullString{String: problem.Signature, Valid: problem.Signature != ""}
	err = database.Transaction(ctx, func(tx db.Transaction) error {
		res, err := tx.Exec(ctx,
			"UPDATE problems SET title = ?, test_cases = ?, signature = ? WHERE id = ?",
			problem.Title, problem.TestCases, signature, problem.ID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
		_, err = tx.Exec(ctx,
			"INSERT INTO problems (id, title, test_cases, signature) VALUES (?, ?, ?, ?)",
			problem.ID, problem.Title, problem.TestCases, signature)
		return err
	})
	if err != nil {
		return err
	}
	return r.Invalidate(ctx, problem.ID)
}

func (r *SQLProblemRepository) Invalidate(ctx context.Context, problemID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Del(ctx, problemKey(problemID))
}

func (r *SQLProblemRepository) getFromDB(ctx context.Context, problemID string) (model.Problem, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, nil)
	if err != nil {
		return model.Problem{}, err
	}
	var (
		p         model.Problem
		signature sql.NullString
	)
	err = querier.QueryRow(ctx,
		"SELECT id, title, test_cases, signature FROM problems WHERE id = ?", problemID,
	).Scan(&p.ID, &p.Title, &p.TestCases, &signature)
	if err != nil {
		if db.IsNoRows(err) {
			return model.Problem{}, ErrProblemNotFound
		}
		return model.Problem{}, err
	}
	p.Signature = signature.String
	return p, nil
}

func problemKey(problemID string) string {
	return problemKeyPrefix + problemID
}

func marshalProblem(p model.Problem) string {
	payload, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalProblem(data string) (model.Problem, error) {
	var p model.Problem
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return model.Problem{}, err
	}
	return p, nil
}
