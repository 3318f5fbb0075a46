package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
)

// DateLayout is the accepted format for date query parameters.
const DateLayout = "2006-01-02"

// ParseQueryDate reads an optional YYYY-MM-DD parameter as a UTC midnight.
func ParseQueryDate(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a YYYY-MM-DD date").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// ParseQueryInt64List collects ids from repeated parameters, "key[]" style
// parameters and comma separated values. Blank entries are ignored.
func ParseQueryInt64List(r *http.Request, key string) ([]int64, error) {
	query := r.URL.Query()
	raw := append(append([]string{}, query[key]...), query[key+"[]"]...)

	out := make([]int64, 0, len(raw))
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a list of integers").WithDetails(map[string]any{"field": key, "value": part})
			}
			out = append(out, id)
		}
	}
	return out, nil
}
