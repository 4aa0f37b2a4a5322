package config

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ParseSeconds parses a duration given either as a bare number of seconds
// ("10", "2.5") or in Go duration syntax ("2m30s").
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return secondsToDuration(secs)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: use seconds or Go syntax like 2m30s", s)
	}
	return d, nil
}

func secondsToDuration(secs float64) (time.Duration, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("invalid duration %v", secs)
	}
	if secs > float64(math.MaxInt64)/float64(time.Second) || secs < float64(math.MinInt64)/float64(time.Second) {
		return 0, fmt.Errorf("duration %vs out of range", secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// SecondsDurationHook returns a decode hook that turns strings and plain
// numbers into time.Duration, treating numbers as seconds.
// Values that already are a time.Duration pass through untouched.
func SecondsDurationHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return ParseSeconds(v)
		case int:
			return secondsToDuration(float64(v))
		case int64:
			return secondsToDuration(float64(v))
		case uint64:
			return secondsToDuration(float64(v))
		case float64:
			return secondsToDuration(v)
		case float32:
			return secondsToDuration(float64(v))
		}
		return data, nil
	}
}
