package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/landingpad/internal/scenario"
	"github.com/mna/mainer"
	"github.com/rs/zerolog"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	logger := zerolog.Nop()
	if c.Debug {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: stdio.Stderr, PartsExclude: []string{zerolog.TimestampFieldName}}).
			Level(zerolog.DebugLevel)
	}

	return eachFile(ctx, stdio, args, func(file string) error {
		b, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		s, err := scenario.Parse(b)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if len(args) > 1 {
			fmt.Fprintf(stdio.Stdout, "# %s\n", file)
		}
		if err := scenario.Run(stdio.Stdout, s, logger); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		return nil
	})
}
