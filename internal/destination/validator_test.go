package destination

import (
	"testing"

	"github.com/blnkfinance/payrec/internal/ocrtext"
	"github.com/blnkfinance/payrec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entity(id string, mutate func(e *model.FinancialEntity)) model.FinancialEntity {
	e := model.FinancialEntity{ID: id, Name: id, Active: true}
	mutate(&e)
	return e
}

func TestValidatePermissiveWithoutEntities(t *testing.T) {
	res := Validate(Candidate{}, "cualquier texto", nil)
	assert.True(t, res.Valid)
	assert.Equal(t, StrategyPermissive, res.Strategy)

	inactive := entity("fe_1", func(e *model.FinancialEntity) { e.Active = false; e.Alias = "x.y.z" })
	res = Validate(Candidate{}, "cualquier texto", []model.FinancialEntity{inactive})
	assert.True(t, res.Valid)
	assert.Nil(t, res.Entity)
}

func TestValidateAliasBeatsKeyword(t *testing.T) {
	byKeyword := entity("fe_keyword", func(e *model.FinancialEntity) { e.Keywords = []string{"López"} })
	byAlias := entity("fe_alias", func(e *model.FinancialEntity) { e.Alias = "Maria.Lopez.MP" })

	c := Extract(sampleReceipt)
	res := Validate(c, ocrtext.Normalize(sampleReceipt), []model.FinancialEntity{byKeyword, byAlias})

	require.True(t, res.Valid)
	assert.Equal(t, "fe_alias", res.Entity.ID)
	assert.Equal(t, "alias", res.Strategy)
}

func TestValidateStrategies(t *testing.T) {
	text := ocrtext.Normalize(sampleReceipt)

	tests := []struct {
		name      string
		candidate Candidate
		entity    model.FinancialEntity
		strategy  string
	}{
		{
			name:      "cbu",
			candidate: Candidate{CBU: "0170099220000012345678"},
			entity:    entity("fe", func(e *model.FinancialEntity) { e.AccountNumber = "0170-0992-2000-0012-3456-78" }),
			strategy:  "cbu",
		},
		{
			name:      "cvu",
			candidate: Candidate{CVU: "0000003100012345678901"},
			entity:    entity("fe", func(e *model.FinancialEntity) { e.AccountNumber = "0000003100012345678901" }),
			strategy:  "cvu",
		},
		{
			name:      "holder name ignores accents and short words",
			candidate: Candidate{PrimaryHolderName: "MARIA F LOPEZ"},
			entity:    entity("fe", func(e *model.FinancialEntity) { e.AccountHolderName = "María de López" }),
			strategy:  "holder_name",
		},
		{
			name:      "holder name found in an alternate",
			candidate: Candidate{PrimaryHolderName: "OTRA PERSONA", AlternateHolderNames: []string{"JUAN CARLOS PAZ"}},
			entity:    entity("fe", func(e *model.FinancialEntity) { e.AccountHolderName = "Juan Paz" }),
			strategy:  "holder_name",
		},
		{
			name:      "keyword in text",
			candidate: Candidate{},
			entity:    entity("fe", func(e *model.FinancialEntity) { e.Keywords = []string{"", "Mercado Pago"} }),
			strategy:  "keyword",
		},
		{
			name:      "alias anywhere in text",
			candidate: Candidate{},
			entity:    entity("fe", func(e *model.FinancialEntity) { e.Alias = "maria.lopez.mp" }),
			strategy:  "alias_in_text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.candidate, text, []model.FinancialEntity{tt.entity})
			require.True(t, res.Valid)
			assert.Equal(t, tt.strategy, res.Strategy)
		})
	}
}

func TestValidateRejectsWithCandidate(t *testing.T) {
	other := entity("fe_other", func(e *model.FinancialEntity) {
		e.Alias = "otra.cuenta.banco"
		e.AccountNumber = "2850590940090418135201"
		e.AccountHolderName = "Empresa Ejemplo"
	})

	c := Extract(sampleReceipt)
	res := Validate(c, ocrtext.Normalize(sampleReceipt), []model.FinancialEntity{other})

	assert.False(t, res.Valid)
	assert.Nil(t, res.Entity)
	assert.Equal(t, c, res.Candidate)
}

func TestValidateRejectionSuggestsNearestAlias(t *testing.T) {
	near := entity("fe_near", func(e *model.FinancialEntity) { e.Alias = "tienda.ropa.mp" })
	far := entity("fe_far", func(e *model.FinancialEntity) { e.Alias = "distribuidora.norte" })

	res := Validate(Candidate{Alias: "tienda.r0pa.mp"}, "transferencia", []model.FinancialEntity{far, near})
	require.False(t, res.Valid)
	assert.Equal(t, "tienda.ropa.mp", res.NearestAlias)

	res = Validate(Candidate{Alias: "cuenta.desconocida"}, "transferencia", []model.FinancialEntity{far, near})
	require.False(t, res.Valid)
	assert.Empty(t, res.NearestAlias)
}
