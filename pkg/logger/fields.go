package logger

import (
	"strconv"
	"strings"
	"time"
)

// StringField returns a LogField for a string value.
func StringField(key, value string) LogField {
	return LogField{Key: key, Value: value}
}

// IntField returns a LogField for an integer value.
func IntField(key string, value int) LogField {
	return LogField{Key: key, Value: strconv.Itoa(value)}
}

// Int64Field returns a LogField for an int64 value.
func Int64Field(key string, value int64) LogField {
	return LogField{Key: key, Value: strconv.FormatInt(value, 10)}
}

// BoolField returns a LogField for a boolean value.
func BoolField(key string, value bool) LogField {
	return LogField{Key: key, Value: strconv.FormatBool(value)}
}

// DurationField returns a LogField for a time.Duration value.
func DurationField(key string, value time.Duration) LogField {
	return LogField{Key: key, Value: value.String()}
}

// StringsField joins a slice with commas.
func StringsField(key string, values []string) LogField {
	return LogField{Key: key, Value: strings.Join(values, ",")}
}

// ErrorField returns a LogField for an error value.
func ErrorField(err error) LogField {
	if err == nil {
		return LogField{Key: "error", Value: "<nil>"}
	}
	return LogField{Key: "error", Value: err.Error()}
}

// Slack-specific fields, kept here so every component logs the same keys.

// UserField returns a LogField for a Slack user ID.
func UserField(id string) LogField {
	return StringField("slack_user", id)
}

// ChannelField returns a LogField for a Slack channel ID.
func ChannelField(id string) LogField {
	return StringField("slack_channel", id)
}

// CommandField returns a LogField for a parsed command token.
func CommandField(token string) LogField {
	return StringField("command", token)
}

// ActionField returns a LogField for an action kind.
func ActionField(kind string) LogField {
	return StringField("action", kind)
}

// PathField returns a LogField for a file or storage path.
func PathField(path string) LogField {
	return StringField("path", path)
}
