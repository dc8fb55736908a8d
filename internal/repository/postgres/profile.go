package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/database"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

const (
	selectProfileSQL = `
		SELECT customer_id, email, subscriptions, updated_at
		FROM customer_profiles
		WHERE customer_id = $1`

	listProfilesWithSubscriptionsSQL = `
		SELECT customer_id, email, subscriptions, updated_at
		FROM customer_profiles
		WHERE jsonb_array_length(subscriptions) > 0
		ORDER BY customer_id`

	upsertProfileSQL = `
		INSERT INTO customer_profiles (customer_id, email, subscriptions, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id) DO UPDATE
		SET email = EXCLUDED.email, subscriptions = EXCLUDED.subscriptions, updated_at = EXCLUDED.updated_at`
)

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
// The subscription list is stored as one JSONB document per customer.
type ProfileRepository struct {
	db database.DBTX
}

// NewProfileRepository creates a new PostgreSQL-backed profile repository.
func NewProfileRepository(db database.DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get retrieves a customer profile by customer id.
func (r *ProfileRepository) Get(ctx context.Context, customerID string) (p *domain.CustomerProfile, err error) {
	ctx, end := database.TraceQuery(ctx, "GetProfile", selectProfileSQL)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	row := database.Executor(ctx, r.db).QueryRow(ctx, selectProfileSQL, customerID)
	p, err = scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("customer profile", customerID)
		}
		return nil, err
	}
	return p, nil
}

// ListWithSubscriptions returns every profile that holds at least one
// subscription. A profile whose subscription list cannot be decoded is
// returned with LoadErr set instead of failing the whole list.
func (r *ProfileRepository) ListWithSubscriptions(ctx context.Context) (profiles []domain.CustomerProfile, err error) {
	ctx, end := database.TraceQuery(ctx, "ListProfilesWithSubscriptions", listProfilesWithSubscriptionsSQL)
	defer func() { end(err) }()

	rows, err := database.Executor(ctx, r.db).Query(ctx, listProfilesWithSubscriptionsSQL)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, subsJSON, err := scanProfileRow(rows)
		if err != nil {
			return nil, err
		}
		p.LoadErr = decodeSubscriptions(p, subsJSON)
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}

	if profiles == nil {
		profiles = []domain.CustomerProfile{}
	}
	return profiles, nil
}

// Save creates or replaces a profile. The whole subscription list is
// written in one statement.
func (r *ProfileRepository) Save(ctx context.Context, p *domain.CustomerProfile) (err error) {
	ctx, end := database.TraceQuery(ctx, "SaveProfile", upsertProfileSQL)
	defer func() { end(err) }()

	subs := p.Subscriptions
	if subs == nil {
		subs = []domain.Subscription{}
	}
	subsJSON, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("marshal subscriptions: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()

	if _, err = database.Executor(ctx, r.db).Exec(ctx, upsertProfileSQL,
		p.CustomerID,
		p.Email,
		subsJSON,
		p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func scanProfile(row pgx.Row) (*domain.CustomerProfile, error) {
	p, subsJSON, err := scanProfileRow(row)
	if err != nil {
		return nil, err
	}
	if err := decodeSubscriptions(p, subsJSON); err != nil {
		return nil, err
	}
	return p, nil
}

func scanProfileRow(row pgx.Row) (*domain.CustomerProfile, []byte, error) {
	var (
		p        domain.CustomerProfile
		subsJSON []byte
	)
	if err := row.Scan(&p.CustomerID, &p.Email, &subsJSON, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, subsJSON, nil
}

func decodeSubscriptions(p *domain.CustomerProfile, subsJSON []byte) error {
	if len(subsJSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(subsJSON, &p.Subscriptions); err != nil {
		p.Subscriptions = nil
		return fmt.Errorf("unmarshal subscriptions of %s: %w", p.CustomerID, err)
	}
	return nil
}
