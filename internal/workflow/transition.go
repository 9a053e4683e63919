// Package workflow holds the task status lifecycle: which transitions are
// legal and what a transition does to the rest of the task.
package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/St1cky1/vfx-tracker/internal/entity"
)

var transitions = map[entity.TaskStatus][]entity.TaskStatus{
	entity.StatusYTS:    {entity.StatusWIP, entity.StatusIntApp, entity.StatusAWF, entity.StatusOMIT, entity.StatusHOLD},
	entity.StatusWIP:    {entity.StatusIntApp, entity.StatusAWF, entity.StatusOMIT, entity.StatusHOLD},
	entity.StatusIntApp: {entity.StatusAWF, entity.StatusOMIT, entity.StatusHOLD},
	entity.StatusAWF:    {entity.StatusCAPP, entity.StatusCKB, entity.StatusOMIT, entity.StatusHOLD},
	entity.StatusCAPP:   {entity.StatusCKB, entity.StatusOMIT, entity.StatusHOLD},
	entity.StatusCKB:    {entity.StatusAWF, entity.StatusOMIT, entity.StatusHOLD},
	entity.StatusOMIT: {entity.StatusYTS, entity.StatusWIP, entity.StatusIntApp, entity.StatusAWF,
		entity.StatusCAPP, entity.StatusCKB, entity.StatusHOLD},
	entity.StatusHOLD: {entity.StatusYTS, entity.StatusWIP, entity.StatusIntApp, entity.StatusAWF,
		entity.StatusCAPP, entity.StatusCKB},
}

// Allowed returns the states reachable from current. The slice is a copy.
func Allowed(current entity.TaskStatus) []entity.TaskStatus {
	next := transitions[current]
	out := make([]entity.TaskStatus, len(next))
	copy(out, next)
	return out
}

// Validate reports whether current -> requested is in the transition table.
// A rejected transition returns *entity.InvalidTransitionError.
func Validate(current, requested entity.TaskStatus) error {
	if !requested.Valid() {
		return entity.Validationf("unknown task status %q", requested)
	}
	for _, s := range transitions[current] {
		if s == requested {
			return nil
		}
	}
	return &entity.InvalidTransitionError{From: current, To: requested, Allowed: Allowed(current)}
}

// Effects are the extra field writes a legal transition implies.
type Effects struct {
	DeliveredVersion *string
	DeliveredDate    *time.Time
}

// Apply computes the side effects of moving task to requested. Entering AWF
// from any other state bumps the delivered version and stamps the delivery
// date; a non-blank versionOverride wins over the bump and is stored trimmed.
func Apply(task *entity.Task, requested entity.TaskStatus, versionOverride *string, now time.Time) Effects {
	var fx Effects
	if requested != entity.StatusAWF || task.Status == entity.StatusAWF {
		return fx
	}
	override := ""
	if versionOverride != nil {
		override = strings.TrimSpace(*versionOverride)
	}
	if override != "" {
		fx.DeliveredVersion = &override
	} else {
		v := NextVersion(task.DeliveredVersion)
		fx.DeliveredVersion = &v
	}
	stamp := now.UTC()
	fx.DeliveredDate = &stamp
	return fx
}

var versionPattern = regexp.MustCompile(`(\d+)\s*$`)

// NextVersion increments the trailing number of a vNNN version string,
// starting at v001 when there is none.
func NextVersion(current *string) string {
	if current == nil {
		return FormatVersion(1)
	}
	m := versionPattern.FindStringSubmatch(*current)
	if m == nil {
		return FormatVersion(1)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return FormatVersion(1)
	}
	return FormatVersion(n + 1)
}

func FormatVersion(n int) string {
	return fmt.Sprintf("v%03d", n)
}
