package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/landingpad/lang/ehtab"
	"github.com/mna/mainer"
)

func (c *Cmd) Dasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	encode := ehtab.Dasm
	if c.YAML {
		encode = ehtab.EncodeYAML
	}

	return eachFile(ctx, stdio, args, func(file string) error {
		u, err := loadUnit(file)
		if err != nil {
			return err
		}
		b, err := encode(u)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if len(args) > 1 {
			fmt.Fprintf(stdio.Stdout, "# %s\n", file)
		}
		_, err = stdio.Stdout.Write(b)
		return err
	})
}
