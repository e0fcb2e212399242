package cmd

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
)

// configGetter retrieves raw configuration values by dotted key path.
type configGetter func(key string) any

// validateStartupConfig validates startup configuration from the shared config source.
// It returns an error when any configured value is malformed or violates constraints.
func validateStartupConfig() error {
	return validateStartupConfigWithGetter(func(key string) any {
		return gconfig.Shared.Get(key)
	})
}

// validateStartupConfigWithGetter validates startup configuration via a key-value getter.
// It accepts a value getter and returns nil when all configured values are valid.
func validateStartupConfigWithGetter(get configGetter) error {
	if get == nil {
		return errors.New("config getter is nil")
	}

	validationErrs := make([]string, 0)

	validateNotesDBConfig(get, &validationErrs)
	validateRedisConfig(get, &validationErrs)
	validateNotesConfig(get, &validationErrs)
	validateIdentityConfig(get, &validationErrs)
	validateWebConfig(get, &validationErrs)
	validateImageHostConfig(get, &validationErrs)

	if len(validationErrs) == 0 {
		return nil
	}

	return errors.Errorf("invalid configuration:\n - %s", strings.Join(validationErrs, "\n - "))
}

// validateNotesDBConfig validates the note store selection and its connection settings.
func validateNotesDBConfig(get configGetter, errs *[]string) {
	validateOptionalEnum(get, "settings.db.notes.driver", storeDrivers, errs)
	validateOptionalURL(get, "settings.db.notes.uri", errs)
	validateOptionalHost(get, "settings.db.notes.addr", errs)
	validateOptionalStringNonEmpty(get, "settings.db.notes.db", errs)
	validateOptionalStringNonEmpty(get, "settings.db.notes.collection", errs)

	if configuredDriver(get) == driverRedis && isBlank(get("settings.db.redis.addr")) {
		appendValidationError(errs, "settings.db.redis.addr is required for the redis driver")
	}
}

// validateRedisConfig validates redis-related startup configuration values.
func validateRedisConfig(get configGetter, errs *[]string) {
	validateOptionalIntMin(get, "settings.db.redis.db", 0, errs)
	validateOptionalHost(get, "settings.db.redis.addr", errs)
	validateOptionalStringNonEmpty(get, "settings.db.redis.key_prefix", errs)
}

// validateNotesConfig validates the note limits and request budget.
func validateNotesConfig(get configGetter, errs *[]string) {
	validateOptionalIntMin(get, "settings.notes.max_text_length", 0, errs)
	validateOptionalDuration(get, "settings.notes.request_timeout", errs)
}

func validateIdentityConfig(get configGetter, errs *[]string) {
	validateOptionalBool(get, "settings.identity.trust_remote_addr", errs)
}

// validateWebConfig validates branding and CORS settings.
func validateWebConfig(get configGetter, errs *[]string) {
	validateOptionalEnum(get, "settings.web.theme", []string{"", "light", "dark"}, errs)

	raw := get("settings.web.cors_allowed_hosts")
	if raw == nil {
		return
	}
	hosts, ok := toStringSlice(raw)
	if !ok {
		appendValidationError(errs, "settings.web.cors_allowed_hosts must be a list of hosts")
		return
	}
	for i, host := range hosts {
		if !isValidHost(host) {
			appendValidationError(errs, "settings.web.cors_allowed_hosts[%d] must be a host without scheme or path", i)
		}
	}
}

// validateImageHostConfig validates the external image host used by the client.
func validateImageHostConfig(get configGetter, errs *[]string) {
	validateOptionalURL(get, "settings.image_host.upload_url", errs)
	validateOptionalStringNonEmpty(get, "settings.image_host.client_id", errs)
}

// configuredDriver returns the configured store driver, defaulting to mongo.
func configuredDriver(get configGetter) string {
	value, err := parseStrictString(get("settings.db.notes.driver"))
	if err != nil || strings.TrimSpace(value) == "" {
		return driverMongo
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func isBlank(raw any) bool {
	value, err := parseStrictString(raw)
	return err != nil || strings.TrimSpace(value) == ""
}

// validateOptionalBool validates an optionally configured boolean key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalBool(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if _, ok := parseStrictBool(raw); !ok {
		appendValidationError(errs, "%s must be a boolean", key)
	}
}

// validateOptionalIntMin validates an optionally configured integer key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalIntMin(get configGetter, key string, min int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalDuration validates an optionally configured positive duration key.
func validateOptionalDuration(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictDuration(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a duration like `10s`", key)
		return
	}

	if value <= 0 {
		appendValidationError(errs, "%s must be > 0", key)
	}
}

// validateOptionalURL validates an optionally configured absolute URL key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalURL(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string URL", key)
		return
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		appendValidationError(errs, "%s must not be empty", key)
		return
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		appendValidationError(errs, "%s must be a valid absolute URL", key)
	}
}

// validateOptionalHost validates an optionally configured `host[:port]` key.
func validateOptionalHost(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil || !isValidHost(value) {
		appendValidationError(errs, "%s must be a host without scheme or path", key)
	}
}

// validateOptionalStringNonEmpty validates an optionally configured non-empty string key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalStringNonEmpty(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	if strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must not be empty", key)
	}
}

// validateOptionalEnum validates that an optionally configured string key is one of allowed.
func validateOptionalEnum(get configGetter, key string, allowed []string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr == nil {
		normalized := strings.ToLower(strings.TrimSpace(value))
		for _, candidate := range allowed {
			if normalized == candidate {
				return
			}
		}
	}

	appendValidationError(errs, "%s must be one of [%s]", key, strings.Join(allowed, ", "))
}

// parseStrictBool parses a value as boolean using strict conversion rules.
// It accepts a raw value and returns the parsed boolean and whether parsing succeeded.
func parseStrictBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		if math.Trunc(v) != v {
			return false, false
		}
		return int64(v) != 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false, false
		}
		switch strings.ToLower(trimmed) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

// parseStrictInt parses a value as a strict integer.
// It accepts a raw value and returns the parsed int and an error when parsing fails.
func parseStrictInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty integer string")
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, errors.Wrap(err, "atoi")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported int type %T", value)
	}
}

// parseStrictDuration parses a Go duration string, a time.Duration,
// or a whole number of seconds.
func parseStrictDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty duration string")
		}
		parsed, err := time.ParseDuration(trimmed)
		if err != nil {
			return 0, errors.Wrap(err, "parse duration")
		}
		return parsed, nil
	default:
		seconds, err := parseStrictInt(value)
		if err != nil {
			return 0, errors.Errorf("unsupported duration type %T", value)
		}
		return time.Duration(seconds) * time.Second, nil
	}
}

// parseStrictString parses a value as a strict string.
// It accepts a raw value and returns the parsed string and an error when parsing fails.
func parseStrictString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.Errorf("unsupported string type %T", value)
	}
}

// toStringSlice converts a YAML list into strings.
func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			text, err := parseStrictString(item)
			if err != nil {
				return nil, false
			}
			out = append(out, text)
		}
		return out, true
	default:
		return nil, false
	}
}

// isValidHost validates a host string without scheme or path components.
// It accepts a host string and returns true when the host is syntactically acceptable.
func isValidHost(host string) bool {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "://") || strings.Contains(trimmed, "/") {
		return false
	}
	return true
}

// appendValidationError appends a formatted validation error to the collector.
// It accepts an error slice pointer, a format string, and format arguments, and has no return value.
func appendValidationError(errs *[]string, format string, args ...any) {
	if errs == nil {
		return
	}
	*errs = append(*errs, fmt.Sprintf(format, args...))
}
