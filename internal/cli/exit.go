package cli

import (
	"errors"
	"fmt"

	"github.com/kent-id/athenaq"
	"github.com/kent-id/athenaq/config"
	"github.com/kent-id/athenaq/format"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitConfig     = 1
	ExitAuth       = 2
	ExitQuery      = 3
	ExitOther      = 4
	ExitFileOutput = 5
)

// AuthError means AWS credentials could not be resolved.
type AuthError struct {
	Profile string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Profile != "" {
		return fmt.Sprintf("failed to authenticate with profile %q: %v", e.Profile, e.Err)
	}
	return fmt.Sprintf("failed to authenticate with the default credential chain: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *config.Error
	var authErr *AuthError
	var fileErr *format.FileOutputError
	var queryErr *athenaq.QueryExecutionError
	var timeoutErr *athenaq.PollTimeoutError
	var remoteErr *athenaq.RemoteError
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &authErr):
		return ExitAuth
	case errors.As(err, &fileErr):
		return ExitFileOutput
	case errors.As(err, &queryErr), errors.As(err, &timeoutErr), errors.As(err, &remoteErr):
		return ExitQuery
	default:
		return ExitOther
	}
}

func errorTitle(err error) string {
	switch ExitCode(err) {
	case ExitConfig:
		return "Configuration Error"
	case ExitAuth:
		return "Authentication Error"
	case ExitQuery:
		return "Query Error"
	case ExitFileOutput:
		return "Output Error"
	default:
		return "Unexpected Error"
	}
}
