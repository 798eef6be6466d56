package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"PizzaLeaderserver/internal/domain"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("multiple json values")
		}
		return err
	}
	return nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(map[string]string{name: "must be a positive integer"})
	}
	return id, nil
}

// queryInts reads optional integer query parameters. Absent keys stay 0.
func queryInts(r *http.Request, keys ...string) (map[string]int, error) {
	q := r.URL.Query()
	out := make(map[string]int, len(keys))
	fields := map[string]string{}
	for _, k := range keys {
		raw := strings.TrimSpace(q.Get(k))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			fields[k] = fmt.Sprintf("%q is not an integer", raw)
			continue
		}
		out[k] = v
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError(fields)
	}
	return out, nil
}
