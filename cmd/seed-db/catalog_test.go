package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookclub-orders/db"
)

func TestParseCatalog_Embedded(t *testing.T) {
	c, err := parseCatalog(db.Catalog)
	require.NoError(t, err)

	require.NotEmpty(t, c.Books)
	require.NotEmpty(t, c.ZipCodes)
	assert.Equal(t, "Dune", c.Books[0].Title)
	assert.True(t, c.Books[0].Price.Equal(decimal.RequireFromString("12.50")))

	seen := make(map[int64]bool)
	for _, b := range c.Books {
		assert.False(t, seen[b.ID], "duplicate book id %d", b.ID)
		seen[b.ID] = true
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	for name, input := range map[string]string{
		"NoTitle":   `{"products":[{"id":1,"price":"1.00"}]}`,
		"BadPrice":  `{"products":[{"id":1,"title":"x","price":"abc"}]}`,
		"BadZip":    `{"zipCodes":[{"zipCode":"1000"}]}`,
		"Malformed": `{"products":[`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseCatalog([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestSplitCodes(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, splitCodes(" A, ,B,"))
	assert.Nil(t, splitCodes(""))
}
