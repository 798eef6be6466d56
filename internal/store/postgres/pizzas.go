package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"PizzaLeaderserver/internal/domain"
)

type PizzasStore struct {
	pool *pgxpool.Pool
}

func NewPizzasStore(pool *pgxpool.Pool) *PizzasStore {
	return &PizzasStore{pool: pool}
}

const pizzaColumns = `id, user_id, eaten_at, ingredients, note, photo_url, photo_key, created_at`

func scanPizza(row pgx.Row) (domain.Pizza, error) {
	var (
		p        domain.Pizza
		userID   pgtype.UUID
		photoURL pgtype.Text
		photoKey pgtype.Text
	)
	if err := row.Scan(&p.ID, &userID, &p.EatenAt, &p.Ingredients, &p.Note, &photoURL, &photoKey, &p.CreatedAt); err != nil {
		return domain.Pizza{}, err
	}
	p.UserID = uuidOrEmpty(userID)
	p.PhotoURL = textOrEmpty(photoURL)
	p.PhotoKey = textOrEmpty(photoKey)
	if p.Ingredients == nil {
		p.Ingredients = []string{}
	}
	return p, nil
}

func (s *PizzasStore) CreatePizza(ctx context.Context, p domain.Pizza) (domain.Pizza, error) {
	const q = `
		INSERT INTO pizzas (user_id, eaten_at, ingredients, note, photo_url, photo_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + pizzaColumns

	ingredients := p.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	out, err := scanPizza(s.pool.QueryRow(ctx, q,
		p.UserID, p.EatenAt, ingredients, p.Note, nullIfEmpty(p.PhotoURL), nullIfEmpty(p.PhotoKey)))
	if err != nil {
		return domain.Pizza{}, mapWriteError("create pizza", err)
	}
	return out, nil
}

// DeletePizza reports ErrNotFound both for missing pizzas and for pizzas owned
// by someone else.
func (s *PizzasStore) DeletePizza(ctx context.Context, id int64, userID string) (domain.Pizza, error) {
	const q = `
		DELETE FROM pizzas
		WHERE id = $1 AND user_id = $2
		RETURNING ` + pizzaColumns

	p, err := scanPizza(s.pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Pizza{}, domain.ErrNotFound
		}
		return domain.Pizza{}, fmt.Errorf("delete pizza: %w", err)
	}
	return p, nil
}

// ListPizzas returns the user's pizzas eaten in [from, to), newest first.
func (s *PizzasStore) ListPizzas(ctx context.Context, userID string, from, to time.Time) ([]domain.Pizza, error) {
	const q = `
		SELECT ` + pizzaColumns + `
		FROM pizzas
		WHERE user_id = $1 AND eaten_at >= $2 AND eaten_at < $3
		ORDER BY eaten_at DESC, id DESC
	`
	rows, err := s.pool.Query(ctx, q, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list pizzas: %w", err)
	}
	defer rows.Close()

	out := []domain.Pizza{}
	for rows.Next() {
		p, err := scanPizza(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pizza: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pizzas: %w", err)
	}
	return out, nil
}

// CountPizzas counts pizzas per user in [from, to). An empty ingredient counts
// everything. Users with no pizzas are absent from the map.
func (s *PizzasStore) CountPizzas(ctx context.Context, userIDs []string, from, to time.Time, ingredient string) (map[string]int, error) {
	out := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	const q = `
		SELECT user_id, count(*)
		FROM pizzas
		WHERE user_id = ANY($1::uuid[])
		  AND eaten_at >= $2 AND eaten_at < $3
		  AND ($4 = '' OR $4 = ANY(ingredients))
		GROUP BY user_id
	`
	rows, err := s.pool.Query(ctx, q, userIDs, from, to, ingredient)
	if err != nil {
		return nil, fmt.Errorf("count pizzas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id pgtype.UUID
			n  int64
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan pizza count: %w", err)
		}
		out[uuidOrEmpty(id)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count pizzas: %w", err)
	}
	return out, nil
}

func (s *PizzasStore) SetYearlyCounter(ctx context.Context, c domain.YearlyCounter) (domain.YearlyCounter, error) {
	const q = `
		INSERT INTO yearly_counters (user_id, year, start_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, year) DO UPDATE
		SET start_count = EXCLUDED.start_count, updated_at = now()
		RETURNING user_id, year, start_count
	`
	var (
		out    domain.YearlyCounter
		userID pgtype.UUID
	)
	if err := s.pool.QueryRow(ctx, q, c.UserID, c.Year, c.StartCount).Scan(&userID, &out.Year, &out.StartCount); err != nil {
		return domain.YearlyCounter{}, mapWriteError("set yearly counter", err)
	}
	out.UserID = uuidOrEmpty(userID)
	return out, nil
}

func (s *PizzasStore) YearlyCounters(ctx context.Context, userIDs []string, year int) (map[string]int, error) {
	out := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	const q = `
		SELECT user_id, start_count
		FROM yearly_counters
		WHERE user_id = ANY($1::uuid[]) AND year = $2
	`
	rows, err := s.pool.Query(ctx, q, userIDs, year)
	if err != nil {
		return nil, fmt.Errorf("yearly counters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    pgtype.UUID
			start int
		)
		if err := rows.Scan(&id, &start); err != nil {
			return nil, fmt.Errorf("scan yearly counter: %w", err)
		}
		out[uuidOrEmpty(id)] = start
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("yearly counters: %w", err)
	}
	return out, nil
}
