package maincmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/mna/landingpad/internal/scenario"
	"github.com/mna/landingpad/lang/ehtab"
	"github.com/mna/mainer"
)

// loadUnit loads the tables of file, in the format indicated by its
// extension.
func loadUnit(file string) (*ehtab.Unit, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var u *ehtab.Unit
	switch filepath.Ext(file) {
	case ".yaml", ".yml":
		u, err = ehtab.DecodeYAML(b)
	case ".eh":
		var s *scenario.Scenario
		if s, err = scenario.Parse(b); err == nil {
			u = s.Unit
		}
	default:
		u, err = ehtab.Asm(b)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return u, nil
}

// eachFile calls fn for each file, stopping early if ctx is done. The errors
// returned by fn are printed and collected.
func eachFile(ctx context.Context, stdio mainer.Stdio, files []string, fn func(string) error) error {
	var result *multierror.Error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, printError(stdio, err))
			break
		}
		if err := fn(file); err != nil {
			result = multierror.Append(result, printError(stdio, err))
		}
	}
	return result.ErrorOrNil()
}
