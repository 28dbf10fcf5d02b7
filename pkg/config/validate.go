// pkg/config/validate.go

package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// envForKey names the variable users set for keys that come from the
// environment by convention.
var envForKey = map[string]string{
	"llm.api_key":  EnvAPIKey,
	"llm.endpoint": EnvEndpoint,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report configuration keys rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the struct tags, resolves derived values, and reports the
// first failure as a configuration error. Missing credentials are checked
// first so the message always names the variable.
func (c *Config) Validate() error {
	for _, key := range []string{"llm.api_key", "llm.endpoint"} {
		if strings.TrimSpace(c.lookup(key)) == "" {
			env := envForKey[key]
			return eos_err.NewConfigurationError(
				fmt.Sprintf("%s is not set", env), nil,
				fmt.Sprintf("export %s=... or add it to .env", env),
			)
		}
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if cerr.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return eos_err.NewConfigurationError("invalid configuration", err)
	}

	if len(c.Values.CPUs) == 0 || len(c.Values.Machines) == 0 || len(c.Values.Types) == 0 {
		return eos_err.NewConfigurationError("values.cpus, values.machines and values.types must not be empty", nil)
	}

	return c.parseSize()
}

func (c *Config) lookup(key string) string {
	switch key {
	case "llm.api_key":
		return c.LLM.APIKey
	case "llm.endpoint":
		return c.LLM.Endpoint
	}
	return ""
}

// fieldError turns one validator failure into a readable configuration error.
func fieldError(fe validator.FieldError) error {
	// Namespace is "Config.llm.endpoint"; drop the root type
	key := fe.Namespace()
	if i := strings.Index(key, "."); i >= 0 {
		key = key[i+1:]
	}

	name := key
	if env, ok := envForKey[key]; ok {
		name = env
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is not set", name)
	case "url":
		msg = fmt.Sprintf("%s must be an absolute URL, got %q", name, fe.Value())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of [%s], got %q", name, fe.Param(), fe.Value())
	case "excluded_without":
		msg = fmt.Sprintf("%s requires push.remote to be set", name)
	default:
		msg = fmt.Sprintf("%s failed %s=%s (got %v)", name, fe.Tag(), fe.Param(), fe.Value())
	}
	return eos_err.NewConfigurationError(msg, nil)
}
