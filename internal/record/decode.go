package record

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/hamed0406/alertwatcher/internal/domain"
)

var (
	ErrNotJSON   = errors.New("record: not a JSON object")
	ErrNoStatus  = errors.New("record: missing status")
	ErrBadStatus = errors.New("record: status is not an integer")
)

// Decode turns one access-log line into a Record. nginx's escape=json format
// writes $status as a string, so both "503" and 503 are accepted.
func Decode(line []byte) (domain.Record, error) {
	line = bytes.TrimSpace(line)
	if !gjson.ValidBytes(line) {
		return domain.Record{}, ErrNotJSON
	}
	doc := gjson.ParseBytes(line)
	if !doc.IsObject() {
		return domain.Record{}, ErrNotJSON
	}

	st := doc.Get("status")
	var status int
	switch st.Type {
	case gjson.Number:
		if st.Num != float64(int(st.Num)) {
			return domain.Record{}, ErrBadStatus
		}
		status = int(st.Num)
	case gjson.String:
		n, err := strconv.Atoi(st.Str)
		if err != nil {
			return domain.Record{}, ErrBadStatus
		}
		status = n
	case gjson.Null:
		return domain.Record{}, ErrNoStatus
	default:
		return domain.Record{}, ErrBadStatus
	}

	return domain.Record{
		Status:         status,
		UpstreamStatus: doc.Get("upstream_status").String(),
	}, nil
}
