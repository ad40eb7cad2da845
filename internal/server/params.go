package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxRequestBodyBytes = 1 << 20

var errInvalidParameter = errors.New("invalid request parameter")

// requestParams merges the JSON body and the query string of a mutation. Body fields win.
type requestParams map[string]json.RawMessage

func readParams(c *gin.Context) (requestParams, error) {
	params := requestParams{}
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodyBytes))
		if err != nil {
			return nil, err
		}
		if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
			if err := json.Unmarshal(trimmed, &params); err != nil {
				return nil, err
			}
		}
	}
	for key, values := range c.Request.URL.Query() {
		if _, present := params[key]; present || len(values) == 0 {
			continue
		}
		encoded, err := json.Marshal(values[0])
		if err != nil {
			return nil, err
		}
		params[key] = encoded
	}
	return params, nil
}

// text returns the string value of key; present is false for absent or null values.
func (p requestParams) text(key string) (value string, present bool, err error) {
	raw, ok := p[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false, errInvalidParameter
	}
	return value, true, nil
}

// flag returns the boolean value of key, accepting JSON booleans and "true"/"false" strings.
func (p requestParams) flag(key string) (*bool, error) {
	raw, ok := p[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var value bool
	if err := json.Unmarshal(raw, &value); err == nil {
		return &value, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, errInvalidParameter
	}
	parsed, err := parseFlag(text)
	if err != nil {
		return nil, errInvalidParameter
	}
	return &parsed, nil
}

func parseFlag(text string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(text))
}

// required returns the non-empty string value of key.
func (p requestParams) required(key string) (string, bool) {
	value, present, err := p.text(key)
	value = strings.TrimSpace(value)
	if err != nil || !present || value == "" {
		return "", false
	}
	return value, true
}
