package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authgraph/authgraph/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for auth items and user
// assignment sets. Items live in auth_items keyed by name; users live in
// auth_users keyed by id with their direct assignments in a text array.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new item. A unique violation on the name maps to
// ErrDuplicateName.
func (r *Repository) Create(ctx context.Context, name string, typ ItemType) (AuthItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AuthItem{}, ErrInvalidName
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_items (name, item_type, children) VALUES ($1, $2, '{}')`,
		name, string(typ))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return AuthItem{}, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		return AuthItem{}, err
	}
	return AuthItem{Name: name, Type: typ}, nil
}

// Delete removes an item by name. Dangling references in other items'
// children arrays are intentionally left in place.
func (r *Repository) Delete(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM auth_items WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddChild unions childName into the parent's children array.
func (r *Repository) AddChild(ctx context.Context, parentName, childName string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE auth_items
		    SET children = (SELECT ARRAY(SELECT DISTINCT unnest(children || $2::text)))
		  WHERE name = $1`,
		parentName, childName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAll returns every item ordered by name.
func (r *Repository) GetAll(ctx context.Context) ([]AuthItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, item_type, children FROM auth_items ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuthItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FindByName returns one item by name.
func (r *Repository) FindByName(ctx context.Context, name string) (AuthItem, bool, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT name, item_type, children FROM auth_items WHERE name = $1`, name)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthItem{}, false, nil
		}
		return AuthItem{}, false, err
	}
	return item, true, nil
}

// Snapshot reads the whole graph in one query so the resolver traverses a
// single consistent result set.
func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, item_type, children FROM auth_items`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	snap := make(Snapshot)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		snap[item.Name] = ItemNode{Type: item.Type, Children: item.Children}
	}
	return snap, rows.Err()
}

// GetAssigned returns a user's direct assignment set.
func (r *Repository) GetAssigned(ctx context.Context, userID string) ([]string, bool, error) {
	var items []string
	err := r.pool.QueryRow(ctx,
		`SELECT auth_items FROM auth_users WHERE id = $1`, userID).Scan(&items)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return items, true, nil
}

// AddToRoles unions roleNames into each user's assignment array inside a
// single transaction, so a multi-user grant is all or nothing. Missing user
// rows are created.
func (r *Repository) AddToRoles(ctx context.Context, userIDs, roleNames []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, id := range userIDs {
			_, err := tx.Exec(ctx,
				`INSERT INTO auth_users (id, auth_items) VALUES ($1, $2)
				 ON CONFLICT (id) DO UPDATE
				   SET auth_items = (SELECT ARRAY(SELECT DISTINCT unnest(auth_users.auth_items || $2::text[])))`,
				id, roleNames)
			if err != nil {
				return fmt.Errorf("authz: add roles for user %s: %w", id, err)
			}
		}
		return nil
	})
}

// RemoveFromRoles removes roleNames from each user's assignment array, in one
// transaction like AddToRoles.
func (r *Repository) RemoveFromRoles(ctx context.Context, userIDs, roleNames []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, id := range userIDs {
			_, err := tx.Exec(ctx,
				`UPDATE auth_users
				    SET auth_items = (SELECT ARRAY(SELECT unnest(auth_items) EXCEPT SELECT unnest($2::text[])))
				  WHERE id = $1`,
				id, roleNames)
			if err != nil {
				return fmt.Errorf("authz: remove roles for user %s: %w", id, err)
			}
		}
		return nil
	})
}

// GetUsersWithItem returns users whose direct set contains name.
func (r *Repository) GetUsersWithItem(ctx context.Context, name string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM auth_users WHERE $1 = ANY(auth_items) ORDER BY id`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanItem(row pgx.Row) (AuthItem, error) {
	var (
		item AuthItem
		typ  string
	)
	if err := row.Scan(&item.Name, &typ, &item.Children); err != nil {
		return AuthItem{}, err
	}
	item.Type = ItemType(typ)
	return item, nil
}

// AllUsers returns every known user id.
func (r *Repository) AllUsers(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM auth_users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
