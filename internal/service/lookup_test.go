package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLookup(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Lookup
	}{
		{"registration", `{"registration":"AB12CDE"}`, ByRegistration("AB12CDE")},
		{"id as string", `{"id":"12"}`, ByID(12)},
		{"id as number", `{"id":12}`, ByID(12)},
		{"extra keys ignored", `{"id":"3","note":"x"}`, ByID(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLookup([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLookupMalformed(t *testing.T) {
	for _, body := range []string{
		``,
		`[]`,
		`{}`,
		`{"registration":""}`,
		`{"registration":"  "}`,
		`{"registration":null}`,
		`{"registration":12}`,
		`{"id":""}`,
		`{"id":null}`,
		`{"id":"abc"}`,
		`{"id":1.5}`,
		`{"id":-1}`,
		`{"id":true}`,
		`{"registration":"AB12CDE","id":"1"}`,
	} {
		_, err := ParseLookup([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedRequest, body)
	}
}

func TestLookupString(t *testing.T) {
	assert.Equal(t, "id 4", ByID(4).String())
	assert.Equal(t, "registration AB12CDE", ByRegistration("AB12CDE").String())
}
