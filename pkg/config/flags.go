// pkg/config/flags.go

package config

import (
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags binds each flag in keys to its configuration key. Flags absent
// from fs are skipped so subcommands can share one key table. All binding
// failures are reported together.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	var result error
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
