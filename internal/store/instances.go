package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"splintarr/internal/services"
)

const instanceColumns = "id, user_id, name, instance_type, url, api_key, verify_ssl, rate_limit_per_second, is_active, created_at, updated_at"

func scanInstance(scanner rowScanner) (*Instance, error) {
	var (
		inst       Instance
		typeStr    string
		verifySSL  int
		active     int
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&inst.ID,
		&inst.UserID,
		&inst.Name,
		&typeStr,
		&inst.URL,
		&inst.APIKey,
		&verifySSL,
		&inst.RateLimitPerSecond,
		&active,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	inst.Type = InstanceType(typeStr)
	inst.VerifySSL = verifySSL != 0
	inst.Active = active != 0
	if created, err := parseTimeString(createdRaw.String); err == nil {
		inst.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		inst.UpdatedAt = updated
	}
	return &inst, nil
}

// CreateInstance inserts an instance. The API key must already be encrypted.
func (s *Store) CreateInstance(ctx context.Context, inst *Instance) (*Instance, error) {
	if inst == nil {
		return nil, services.Wrap(services.ErrValidation, "store", "create instance", "instance is nil", nil)
	}
	if strings.TrimSpace(inst.Name) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create instance", "name is required", nil)
	}
	if !inst.Type.Valid() {
		return nil, services.Wrap(services.ErrValidation, "store", "create instance",
			fmt.Sprintf("unknown instance type %q", inst.Type), nil)
	}
	if strings.TrimSpace(inst.URL) == "" || inst.APIKey == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create instance", "url and api key are required", nil)
	}
	if inst.RateLimitPerSecond < 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "create instance", "rate limit must be >= 0", nil)
	}

	ts := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO instances (
            user_id, name, instance_type, url, api_key, verify_ssl,
            rate_limit_per_second, is_active, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.UserID,
		strings.TrimSpace(inst.Name),
		string(inst.Type),
		strings.TrimRight(strings.TrimSpace(inst.URL), "/"),
		inst.APIKey,
		boolToInt(inst.VerifySSL),
		inst.RateLimitPerSecond,
		1,
		ts,
		ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert instance: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetInstance(ctx, id)
}

// GetInstance fetches an instance by id. It returns nil, nil when no row
// matches.
func (s *Store) GetInstance(ctx context.Context, id int64) (*Instance, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+instanceColumns+" FROM instances WHERE id = ?", id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance %d: %w", id, err)
	}
	return inst, nil
}

// ListInstances returns every instance ordered by id.
func (s *Store) ListInstances(ctx context.Context) ([]*Instance, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+instanceColumns+" FROM instances ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}
