package destination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleReceipt = `Comprobante de transferencia
Fecha: 12/05/2024
Monto: $ 25.000,00
Origen
Carlos Gomez
CBU: 0170099220000012345678
Destinatario
María Fernanda López
CVU: 0000003100012345678901
Alias: maria.lopez.mp
Banco: Mercado Pago
Concepto: Varios`

func TestExtractDestinationSection(t *testing.T) {
	c := Extract(sampleReceipt)

	assert.Equal(t, "maria.lopez.mp", c.Alias)
	assert.Equal(t, "0000003100012345678901", c.CVU)
	assert.Empty(t, c.CBU, "sender account must not be captured")
	assert.Equal(t, "Maria Fernanda Lopez", c.PrimaryHolderName)
	assert.Empty(t, c.AlternateHolderNames)
}

func TestExtractAnchorWithInlineValues(t *testing.T) {
	text := "Para: JOSE MARTINEZ\nCBU destino: 0170 0992 2000 0012 3456 78"
	c := Extract(text)

	assert.Equal(t, "JOSE MARTINEZ", c.PrimaryHolderName)
	assert.Equal(t, "0170099220000012345678", c.CBU)
	assert.Empty(t, c.CVU)
}

func TestExtractSectionIsBounded(t *testing.T) {
	text := "Destinatario\nitem 1\nitem 2\nitem 3\nitem 4\nitem 5\nitem 6\n0170099220000012345678"
	c := Extract(text)

	assert.Empty(t, c.CBU)
	assert.True(t, c.Empty())
}

func TestExtractOriginKeywordsOnlyCloseAnOpenSection(t *testing.T) {
	text := "Importe $ 5.000\nBeneficiario\nAna Torres\nImporte $ 5.000\nPedro Diaz"
	c := Extract(text)

	assert.Equal(t, "Ana Torres", c.PrimaryHolderName)
	assert.Empty(t, c.AlternateHolderNames)
}

func TestExtractAllCapsFallback(t *testing.T) {
	text := "Transferencia realizada\nJUAN PEREZ\nMonto $ 1.000\nMARIA GOMEZ\ncbu 0170099220000012345678"
	c := Extract(text)

	assert.Equal(t, "JUAN PEREZ", c.PrimaryHolderName)
	assert.Equal(t, []string{"MARIA GOMEZ"}, c.AlternateHolderNames)
	assert.Empty(t, c.CBU, "accounts outside a destination section are ignored")
}

func TestHolderNameRejectsNegativeTokens(t *testing.T) {
	_, ok := holderName("Alias de cuenta")
	assert.False(t, ok)

	_, ok = holderName("Juan")
	assert.False(t, ok)

	name, ok := holderName("  Lucía   Benítez ")
	assert.True(t, ok)
	assert.Equal(t, "Lucia Benitez", name)
}
