package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/visadesk/walletcore/internal/core/repository"
)

type postgresPartnerDirectory struct {
	db *sqlx.DB
}

func NewPostgresPartnerDirectory(db *sqlx.DB) repository.PartnerDirectory {
	return &postgresPartnerDirectory{db: db}
}

func (r *postgresPartnerDirectory) DefaultCurrency(ctx context.Context, partnerID uuid.UUID) (string, error) {
	var currency string
	const query = `SELECT default_currency FROM partners WHERE id = $1`
	err := r.db.GetContext(ctx, &currency, query, partnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrPartnerNotFound, partnerID)
		}
		return "", fmt.Errorf("get partner currency: %w", err)
	}
	return currency, nil
}
