package profiles

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gorm.io/datatypes"
)

const maxTextLength = 4096

var (
	// ErrUnknownField reports a key outside the profile allow-list.
	ErrUnknownField = errors.New("profiles: unknown field")
	// ErrInvalidField reports a value that does not match its field's type.
	ErrInvalidField = errors.New("profiles: invalid field value")
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindInteger
	kindObject
	kindStringList
)

// editableFields maps the allow-listed request keys onto their columns and value shapes.
var editableFields = map[string]fieldKind{
	"full_name":          kindText,
	"date_of_birth":      kindText,
	"age":                kindInteger,
	"gender":             kindText,
	"profile_photo":      kindText,
	"organization_type":  kindText,
	"organization_name":  kindText,
	"organization_email": kindText,
	"department":         kindText,
	"designation":        kindText,
	"home_station":       kindText,
	"work_station":       kindText,
	"commute_times":      kindObject,
	"travel_days":        kindStringList,
	"bio":                kindText,
	"interests":          kindStringList,
	"privacy_settings":   kindObject,
}

// serverOwnedFields are echoed back by clients that post a whole profile; they are dropped.
var serverOwnedFields = map[string]struct{}{
	"user_id":     {},
	"created_at":  {},
	"updated_at":  {},
	"is_verified": {},
}

// Update is a validated set of profile column assignments.
type Update struct {
	assignments map[string]interface{}
}

// ParseUpdate validates a raw JSON object against the allow-list. Keys that are present are
// assigned (null clears a field); keys that are absent are left untouched on merge.
func ParseUpdate(raw map[string]json.RawMessage) (Update, error) {
	assignments := make(map[string]interface{}, len(raw))
	for key, value := range raw {
		if _, ignored := serverOwnedFields[key]; ignored {
			continue
		}
		kind, ok := editableFields[key]
		if !ok {
			return Update{}, fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
		decoded, err := decodeField(kind, value)
		if err != nil {
			return Update{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
		}
		assignments[key] = decoded
	}
	return Update{assignments: assignments}, nil
}

// Fields lists the assigned keys in sorted order.
func (u Update) Fields() []string {
	keys := make([]string, 0, len(u.assignments))
	for key := range u.assignments {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Empty reports whether the update assigns nothing.
func (u Update) Empty() bool {
	return len(u.assignments) == 0
}

func (u Update) columns() map[string]interface{} {
	columns := make(map[string]interface{}, len(u.assignments))
	for key, value := range u.assignments {
		columns[key] = value
	}
	return columns
}

func decodeField(kind fieldKind, value json.RawMessage) (interface{}, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return emptyValue(kind), nil
	}

	switch kind {
	case kindText:
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, err
		}
		if len(text) > maxTextLength {
			return nil, fmt.Errorf("exceeds %d characters", maxTextLength)
		}
		return text, nil
	case kindInteger:
		return decodeInteger(trimmed)
	case kindObject:
		object := map[string]interface{}{}
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return nil, err
		}
		return datatypes.JSONMap(object), nil
	case kindStringList:
		list := []string{}
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return datatypes.NewJSONSlice(list), nil
	default:
		return nil, fmt.Errorf("unsupported field kind %d", kind)
	}
}

// emptyValue is what a null clears a field to. JSON columns keep a document rather than NULL.
func emptyValue(kind fieldKind) interface{} {
	switch kind {
	case kindObject:
		return datatypes.JSONMap{}
	case kindStringList:
		return datatypes.NewJSONSlice([]string{})
	default:
		return nil
	}
}

// decodeInteger accepts a JSON number or a numeric string holding a whole value, so 25, 25.0
// and 2.5e1 are the same age. An empty string clears the field.
func decodeInteger(value json.RawMessage) (interface{}, error) {
	var number json.Number
	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.UseNumber()
	if err := decoder.Decode(&number); err == nil {
		return parseWholeNumber(number.String())
	}

	var text string
	if err := json.Unmarshal(value, &text); err != nil {
		return nil, fmt.Errorf("expected integer")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return parseWholeNumber(text)
}

func parseWholeNumber(text string) (interface{}, error) {
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed != math.Trunc(parsed) {
		return nil, fmt.Errorf("expected integer")
	}
	if math.Abs(parsed) > math.MaxInt32 {
		return nil, fmt.Errorf("out of range")
	}
	return checkAge(int(parsed))
}

func checkAge(age int) (interface{}, error) {
	if age < 0 || age > 150 {
		return nil, fmt.Errorf("out of range")
	}
	return age, nil
}
