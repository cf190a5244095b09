package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"
)

func (c *Cmd) Check(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return eachFile(ctx, stdio, args, func(file string) error {
		u, err := loadUnit(file)
		if err != nil {
			return err
		}
		if err := u.Tables.CheckCleanupLast(); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		t := u.Tables
		fmt.Fprintf(stdio.Stdout, "%s: %d classes, %d types, %d filters, %d clauses\n",
			file, len(u.Classes.Classes()), len(t.Types), len(t.Filters), len(t.Clauses))
		return nil
	})
}
