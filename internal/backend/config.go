package backend

import (
	"errors"
	"fmt"
	"strings"

	"wenxuji/internal/config"
)

var errNilConfig = errors.New("app config is nil")

// FromAppConfig picks the backend fields out of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errNilConfig
	}

	backendType := BackendType(strings.ToLower(strings.TrimSpace(appConfig.DataBackend)))
	if !backendType.IsValid() {
		return Config{}, unknownType(appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate collects every problem with c instead of stopping at the first.
func (c Config) Validate() error {
	var errs []error
	if !c.Type.IsValid() {
		errs = append(errs, unknownType(string(c.Type)))
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		errs = append(errs, errors.New("sqlite backend needs a database path"))
	}
	if c.EventsEnabled() && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		errs = append(errs, errors.New("ledger events need both an AMQP exchange and queue"))
	}
	return errors.Join(errs...)
}

func unknownType(got string) error {
	return fmt.Errorf("unknown ledger backend %q (want one of %s)",
		got, strings.Join(GetBackendTypeStrings(), ", "))
}

// GetBackendTypes lists the supported KV backends.
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}

// GetBackendTypeStrings lists the supported KV backends by name.
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}
