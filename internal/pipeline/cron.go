package pipeline

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// parseCron parses a standard 5-field cron expression or an @descriptor
// such as "@hourly". Schedules are evaluated in the location of the time
// passed to Next.
func parseCron(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("pipeline: cron %q: %w", expr, err)
	}
	return sched, nil
}
