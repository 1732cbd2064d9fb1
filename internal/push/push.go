package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrTokenUnregistered indicates the device token is no longer valid and must
// be removed from the owning user record.
var ErrTokenUnregistered = errors.New("push: device token unregistered")

// Message is a transport-neutral push notification.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Client delivers a single push message and returns the provider message id.
type Client interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// StringifyData coerces arbitrary payload values into the string-only data map
// push providers require. Scalars render with their natural formatting and
// everything else falls back to JSON.
func StringifyData(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}

	out := make(map[string]string, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case nil:
			out[key] = ""
		case string:
			out[key] = v
		case bool:
			out[key] = strconv.FormatBool(v)
		case int:
			out[key] = strconv.Itoa(v)
		case int64:
			out[key] = strconv.FormatInt(v, 10)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case fmt.Stringer:
			out[key] = v.String()
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				out[key] = fmt.Sprint(v)
				continue
			}
			out[key] = string(encoded)
		}
	}
	return out
}
