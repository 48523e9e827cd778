package main

import (
	"context"
	"fmt"
)

// compact renumbers the modules of courseID, or the topics of moduleID, 1..N.
func (cli *commandLine) compact(courseID, moduleID string) error {
	ctx := context.Background()

	var (
		n     int
		err   error
		scope string
	)
	if courseID != "" {
		n, err = cli.courseSvc.CompactModules(ctx, courseID)
		scope = "modules of course " + courseID
	} else {
		n, err = cli.courseSvc.CompactTopics(ctx, moduleID)
		scope = "topics of module " + moduleID
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d %s renumbered\n", n, scope)
	return nil
}
