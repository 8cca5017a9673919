/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

const entityColumns = `entity_id, name, alias, account_number, account_holder_name, keywords, active, is_default, created_at`

func scanEntity(row rowScanner) (*model.FinancialEntity, error) {
	e := &model.FinancialEntity{}
	err := row.Scan(&e.ID, &e.Name, &e.Alias, &e.AccountNumber, &e.AccountHolderName,
		pq.Array(&e.Keywords), &e.Active, &e.IsDefault, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func entityNotFound(id string) error {
	return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Financial entity '%s' not found", id), nil)
}

func (d Datasource) CreateFinancialEntity(ctx context.Context, entity *model.FinancialEntity) error {
	ctx, span := otel.Tracer("payrec.financial_entity").Start(ctx, "Saving financial entity to db")
	defer span.End()

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO payrec.financial_entities (entity_id, name, alias, account_number, account_holder_name, keywords, active, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		RETURNING created_at`,
		entity.ID, entity.Name, entity.Alias, entity.AccountNumber, entity.AccountHolderName,
		pq.Array(entity.Keywords), entity.Active,
	).Scan(&entity.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apierror.NewAPIError(apierror.ErrConflict, "Financial entity with this alias or account already exists", nil)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create financial entity", err)
	}
	entity.IsDefault = false
	return nil
}

func (d Datasource) GetFinancialEntity(ctx context.Context, id string) (*model.FinancialEntity, error) {
	ctx, span := otel.Tracer("payrec.financial_entity").Start(ctx, "Fetching financial entity from db")
	defer span.End()

	e, err := scanEntity(d.Conn.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM payrec.financial_entities WHERE entity_id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entityNotFound(id)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch financial entity", err)
	}
	return e, nil
}

// ListActiveFinancialEntities returns the registry the destination validator
// matches against, default entity first.
func (d Datasource) ListActiveFinancialEntities(ctx context.Context) ([]model.FinancialEntity, error) {
	ctx, span := otel.Tracer("payrec.financial_entity").Start(ctx, "Listing active financial entities")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+entityColumns+` FROM payrec.financial_entities
		WHERE active
		ORDER BY is_default DESC, created_at ASC`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list financial entities", err)
	}
	defer rows.Close()

	var entities []model.FinancialEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan financial entity", err)
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

// SetDefaultFinancialEntity makes id the only default entity.
func (d Datasource) SetDefaultFinancialEntity(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("payrec.financial_entity").Start(ctx, "Setting default financial entity")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, `UPDATE payrec.financial_entities SET is_default = FALSE WHERE is_default AND entity_id <> $1`, id); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear default financial entity", err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE payrec.financial_entities SET is_default = TRUE WHERE entity_id = $1 AND active`, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to set default financial entity", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return entityNotFound(id)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

// DeactivateFinancialEntity removes an entity from validation. A deactivated
// entity also loses its default flag.
func (d Datasource) DeactivateFinancialEntity(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("payrec.financial_entity").Start(ctx, "Deactivating financial entity")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx,
		`UPDATE payrec.financial_entities SET active = FALSE, is_default = FALSE WHERE entity_id = $1`, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to deactivate financial entity", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if affected == 0 {
		return entityNotFound(id)
	}
	return nil
}
