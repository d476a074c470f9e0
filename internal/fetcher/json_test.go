package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONObject(t *testing.T) {
	type rates struct {
		Base  string             `json:"base_code"`
		Rates map[string]float64 `json:"rates"`
	}

	obj, err := DecodeJSONObject[rates](strings.NewReader(`{"base_code":"USD","rates":{"EUR":0.92}}`))
	require.NoError(t, err)
	assert.Equal(t, "USD", obj.Base)
	assert.Equal(t, 0.92, obj.Rates["EUR"])
}

func TestDecodeJSONObject_Malformed(t *testing.T) {
	type rates struct{}
	_, err := DecodeJSONObject[rates](strings.NewReader(`{"base_code":`))
	assert.Error(t, err)
}
