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

package payrec

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/blnkfinance/payrec/internal/apierror"
	"github.com/blnkfinance/payrec/internal/cache"
	"github.com/blnkfinance/payrec/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const activeEntitiesCacheKey = "financial_entities:active"

var accountNumberPattern = regexp.MustCompile(`^\d{22}$`)

// ActiveFinancialEntities returns the registry used to validate receipt
// destinations. Reads go through the cache; a cache failure falls back to
// the database.
func (p *Payrec) ActiveFinancialEntities(ctx context.Context) ([]model.FinancialEntity, error) {
	ctx, span := otel.Tracer("payrec.financial_entity").Start(ctx, "ActiveFinancialEntities")
	defer span.End()

	var entities []model.FinancialEntity
	err := p.cache.Get(ctx, activeEntitiesCacheKey, &entities)
	if err == nil {
		return entities, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logrus.WithError(err).Warn("financial entity cache read failed")
	}

	entities, err = p.datasource.ListActiveFinancialEntities(ctx)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(p.config.Receipts.EntityCacheTTLSec) * time.Second
	if err := p.cache.Set(ctx, activeEntitiesCacheKey, entities, ttl); err != nil {
		logrus.WithError(err).Warn("financial entity cache write failed")
	}
	return entities, nil
}

func (p *Payrec) invalidateEntities(ctx context.Context) {
	if err := p.cache.Delete(ctx, activeEntitiesCacheKey); err != nil {
		logrus.WithError(err).Warn("failed to invalidate financial entity cache")
	}
}

func normalizeEntity(e *model.FinancialEntity) error {
	e.Name = strings.TrimSpace(e.Name)
	e.Alias = strings.ToLower(strings.TrimSpace(e.Alias))
	e.AccountNumber = strings.NewReplacer(" ", "", "-", "", ".", "").Replace(e.AccountNumber)
	e.AccountHolderName = strings.TrimSpace(e.AccountHolderName)

	keywords := e.Keywords[:0]
	for _, kw := range e.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	e.Keywords = keywords

	if e.Name == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "financial entity name is required", nil)
	}
	if e.AccountNumber != "" && !accountNumberPattern.MatchString(e.AccountNumber) {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "account number must have 22 digits", nil)
	}
	if e.Alias == "" && e.AccountNumber == "" && e.AccountHolderName == "" && len(e.Keywords) == 0 {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "financial entity needs an alias, account number, holder name or keyword", nil)
	}
	return nil
}

// CreateFinancialEntity registers an accepted destination account. New
// entities are active and never the default.
func (p *Payrec) CreateFinancialEntity(ctx context.Context, entity model.FinancialEntity) (*model.FinancialEntity, error) {
	ctx, span := otel.Tracer("payrec.financial_entity").Start(ctx, "CreateFinancialEntity")
	defer span.End()

	if err := normalizeEntity(&entity); err != nil {
		return nil, err
	}
	entity.ID = model.GenerateUUIDWithSuffix("fe")
	entity.Active = true
	entity.IsDefault = false

	if err := p.datasource.CreateFinancialEntity(ctx, &entity); err != nil {
		return nil, err
	}
	p.invalidateEntities(ctx)
	return &entity, nil
}

func (p *Payrec) GetFinancialEntity(ctx context.Context, id string) (*model.FinancialEntity, error) {
	return p.datasource.GetFinancialEntity(ctx, id)
}

// SetDefaultFinancialEntity makes id the only default entity.
func (p *Payrec) SetDefaultFinancialEntity(ctx context.Context, id string) (*model.FinancialEntity, error) {
	entity, err := p.datasource.GetFinancialEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.Active {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "an inactive financial entity cannot be the default", nil)
	}
	if err := p.datasource.SetDefaultFinancialEntity(ctx, id); err != nil {
		return nil, err
	}
	p.invalidateEntities(ctx)
	entity.IsDefault = true
	return entity, nil
}

func (p *Payrec) DeactivateFinancialEntity(ctx context.Context, id string) error {
	if err := p.datasource.DeactivateFinancialEntity(ctx, id); err != nil {
		return err
	}
	p.invalidateEntities(ctx)
	return nil
}
