package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "version": 1,
  "products": [
    {"sku": "BRK-001", "title": "Brake Pads", "category": "brakes", "price": 10.00, "imageUrl": "brakes.png"},
    {"sku": "OIL-002", "title": "Oil Filter", "category": "engine", "price": "5.50", "extra": [1, 2]}
  ],
  "users": [
    {"id": "u-1", "username": "alice", "email": "alice@example.com", "name": "Alice", "apiKey": "alice-key"}
  ]
}`

func TestDecodeSeed(t *testing.T) {
	data, err := decodeSeed(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, data.Products, 2)
	assert.Equal(t, "BRK-001", data.Products[0].SKU)
	assert.Equal(t, "brakes.png", data.Products[0].ImageURL)
	assert.True(t, decimal.RequireFromString("10").Equal(data.Products[0].Price))
	assert.True(t, decimal.RequireFromString("5.50").Equal(data.Products[1].Price))

	require.Len(t, data.Users, 1)
	assert.Equal(t, "alice", data.Users[0].Username)
	assert.Equal(t, "alice-key", data.Users[0].APIKey)
}

func TestDecodeSeed_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing sku", `{"products":[{"title":"X","price":1}]}`},
		{"zero price", `{"products":[{"sku":"A","title":"X","price":0}]}`},
		{"bad price", `{"products":[{"sku":"A","title":"X","price":"abc"}]}`},
		{"missing username", `{"users":[{"id":"u"}]}`},
		{"not an object", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeSeed(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestOpenSeed_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := pgzip.NewWriter(f)
	_, err = zw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	rc, err := openSeed(path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := decodeSeed(rc)
	require.NoError(t, err)
	assert.Len(t, data.Products, 2)
}
