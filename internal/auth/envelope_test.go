package auth

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validationBody = `{
	"status": 200,
	"message": "Token is valid",
	"data": {
		"username": "alice",
		"roles": [
			{"name": "ROLE_USER", "authorities": [{"name": "USER_DETAILS_READ", "id": 1}]},
			{"name": "ROLE_EDITOR", "authorities": [
				{"name": "USER_DETAILS_READ", "id": 1},
				{"name": "USER_DETAILS_WRITE", "id": 2}
			]}
		]
	}
}`

func TestExtractEmbeddedObject(t *testing.T) {
	p, err := Extract(&Envelope{Status: 200, Message: json.RawMessage(validationBody)})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, []string{"USER_DETAILS_READ", "USER_DETAILS_WRITE"}, p.Permissions())
}

func TestExtractStringEncodedMessage(t *testing.T) {
	encoded, err := json.Marshal(validationBody)
	require.NoError(t, err)

	p, err := Extract(&Envelope{Status: 200, Message: encoded})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.True(t, p.Has("USER_DETAILS_WRITE"))
}

func TestExtractFromWireEnvelope(t *testing.T) {
	// the full wire shape, with the body double encoded under message
	wire := `{"status":200,"message":"{\"data\":{\"username\":\"bob\",\"roles\":[]},\"message\":\"ok\",\"status\":200}"}`
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(wire), &env))

	p, err := Extract(&env)
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Username)
	assert.Empty(t, p.Permissions())
}

func TestExtractEmptyAuthorities(t *testing.T) {
	body := `{"data":{"username":"carol","roles":[{"name":"ROLE_NONE","authorities":[]},{"name":"ROLE_NULL","authorities":null}]}}`
	p, err := Extract(&Envelope{Message: json.RawMessage(body)})
	require.NoError(t, err)
	assert.Empty(t, p.Permissions())
}

func TestExtractMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty message", ``},
		{"not json", `{nope`},
		{"string that is not json", `"hello"`},
		{"no data", `{"status":200}`},
		{"no username", `{"data":{"roles":[]}}`},
		{"empty username", `{"data":{"username":"","roles":[]}}`},
		{"no roles", `{"data":{"username":"alice"}}`},
		{"roles wrong shape", `{"data":{"username":"alice","roles":"admin"}}`},
		{"username wrong shape", `{"data":{"username":12,"roles":[]}}`},
		{"authority without name", `{"data":{"username":"alice","roles":[{"authorities":[{"id":1}]}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(&Envelope{Status: 200, Message: json.RawMessage(tt.body)})
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}

	_, err := Extract(nil)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}
