package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
)

// ErrOrganizationNotFound is returned when no organization matches a lookup.
var ErrOrganizationNotFound = errors.New("organization not found")

// GetOrganizationIDByDomain finds the organization owning a sender domain.
func GetOrganizationIDByDomain(ctx context.Context, pool *pgxpool.Pool, domain string) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx, `
		SELECT id FROM organizations WHERE email_domain = $1 LIMIT 1
	`, domain).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrOrganizationNotFound
	}

	if err != nil {
		return 0, fmt.Errorf("failed to look up organization by domain: %w", err)
	}

	return id, nil
}

// CreateOrganization inserts a new known organization and returns its id.
func CreateOrganization(ctx context.Context, pool *pgxpool.Pool, org *models.Organization) (int64, error) {
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO organizations (name, email_domain, type, notes)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING id
	`, org.Name, org.EmailDomain, org.Type, org.Notes).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to create organization: %w", err)
	}

	org.ID = id
	return id, nil
}
