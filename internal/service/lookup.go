package service

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Lookup selects one vehicle by registration or by id, never both.
type Lookup struct {
	Registration string
	ID           int64
	byID         bool
}

func ByRegistration(registration string) Lookup { return Lookup{Registration: registration} }
func ByID(id int64) Lookup                      { return Lookup{ID: id, byID: true} }

func (l Lookup) String() string {
	if l.byID {
		return "id " + strconv.FormatInt(l.ID, 10)
	}
	return "registration " + l.Registration
}

// ParseLookup reads {"registration": "..."} or {"id": "..." | n}. Exactly one
// key must be present and non-empty.
func ParseLookup(body []byte) (Lookup, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Lookup{}, fmt.Errorf("%w: request body with registration or id is required", ErrMalformedRequest)
	}
	var req map[string]json.RawMessage
	if err := json.Unmarshal(body, &req); err != nil {
		return Lookup{}, fmt.Errorf("%w: request body must be a JSON object", ErrMalformedRequest)
	}
	rawReg, hasReg := req["registration"]
	rawID, hasID := req["id"]
	switch {
	case hasReg && hasID:
		return Lookup{}, fmt.Errorf("%w: supply registration or id, not both", ErrMalformedRequest)
	case hasReg:
		var reg *string
		if err := json.Unmarshal(rawReg, &reg); err != nil || reg == nil || strings.TrimSpace(*reg) == "" {
			return Lookup{}, fmt.Errorf("%w: registration must be a non-empty string", ErrMalformedRequest)
		}
		return ByRegistration(*reg), nil
	case hasID:
		id, err := parseID(rawID)
		if err != nil {
			return Lookup{}, err
		}
		return ByID(id), nil
	default:
		return Lookup{}, fmt.Errorf("%w: registration or id is required", ErrMalformedRequest)
	}
}

func parseID(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, fmt.Errorf("%w: id must be a string or a number", ErrMalformedRequest)
		}
		s = n.String()
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: id must not be empty", ErrMalformedRequest)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q is not a valid identifier", ErrMalformedRequest, s)
	}
	return id, nil
}
