package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/google/uuid"
)

// maxJSONBody bounds JSON request bodies. A full 1000-row import batch
// stays well below it.
const maxJSONBody = 8 << 20

// decodeJSON reads a JSON body into v. Syntax and type errors become
// EINVALID with a message naming the problem.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is empty")
		case errors.As(err, &maxErr):
			return domain.TooLarge(op, "Request body is too large")
		case errors.As(err, &syntaxErr):
			return domain.Invalid(op, "Request body is not valid JSON")
		case errors.As(err, &typeErr):
			if typeErr.Field != "" {
				return domain.Invalid(op, "Invalid value for "+typeErr.Field)
			}
			return domain.Invalid(op, "Request body has the wrong shape")
		default:
			return domain.Invalid(op, "Request body is not valid JSON")
		}
	}
	return nil
}

// pathID parses the {name} path value as a UUID.
func pathID(r *http.Request, op, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalid(op, "Invalid "+name)
	}
	return id, nil
}

// queryInt returns the integer query parameter key, or fallback when it is
// missing or not a number.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// queryFloat parses an optional float query parameter. ok is false when
// the parameter is absent.
func queryFloat(r *http.Request, op, key string) (v float64, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, domain.Invalid(op, "Invalid "+key)
	}
	return v, true, nil
}

// queryCoordinates reads a lat/lng pair. Both or neither must be given.
func queryCoordinates(r *http.Request, op string) (*domain.Coordinates, error) {
	lat, hasLat, err := queryFloat(r, op, "lat")
	if err != nil {
		return nil, err
	}
	lng, hasLng, err := queryFloat(r, op, "lng")
	if err != nil {
		return nil, err
	}
	if hasLat != hasLng {
		return nil, domain.Invalid(op, "lat and lng must be given together")
	}
	if !hasLat {
		return nil, nil
	}
	c := domain.Coordinates{Latitude: lat, Longitude: lng}
	if !c.Valid() {
		return nil, domain.Invalid(op, "Coordinates are out of range")
	}
	return &c, nil
}

// queryIDs parses a comma separated list of UUIDs.
func queryIDs(r *http.Request, op, key string) ([]uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, domain.Invalid(op, "Invalid "+key)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
