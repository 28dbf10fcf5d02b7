// pkg/eos_cli/wrap.go

package eos_cli

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunFunc is the signature of a command body run under Wrap.
type RunFunc func(rc *eos_io.RuntimeContext, cmd *cobra.Command, args []string) error

// Wrap ensures panic recovery, interrupt handling, telemetry and logging
// around a command body.
func Wrap(fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}

		signals := NewSignalHandler(parent)
		defer signals.Stop()

		rc := eos_io.NewContext(signals.Context(), cmd.Name())
		defer rc.End(&err)

		defer rc.HandlePanic(&err)

		rc.Log.Debug("Command started",
			zap.String("command_path", cmd.CommandPath()),
			zap.Strings("args", args))

		err = fn(rc, cmd, args)
		if err != nil && signals.Interrupted() {
			return cerr.WithSecondaryError(eos_err.NewUserCancelledError(cmd.Name()), err)
		}
		if err != nil {
			err = cerr.WithStack(err)
		}
		return err
	}
}
