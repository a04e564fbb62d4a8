package skills

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/claybowl/taygency/internal/tasks"
)

// PlanningSkillName is the name of the built-in planning skill.
const PlanningSkillName = "task-planning"

//go:embed planning.jsonc
var planningManifest []byte

// Planning is the task-planning code skill.
type Planning struct {
	tasks *tasks.Store
	skill *Skill
	now   func() time.Time
}

// NewPlanning creates the planning skill over the task store.
func NewPlanning(store *tasks.Store) (*Planning, error) {
	skill, err := ParseManifest(planningManifest)
	if err != nil {
		return nil, err
	}
	return &Planning{tasks: store, skill: skill, now: time.Now}, nil
}

// Skill returns the catalog entry.
func (p *Planning) Skill() *Skill { return p.skill }

// Overdue returns active tasks due before now, oldest due date first.
func (p *Planning) Overdue(ctx context.Context, category string) ([]*tasks.Task, error) {
	active, err := p.tasks.List(ctx, tasks.ListFilter{Status: tasks.StatusActive, Category: strings.TrimSpace(category)})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PlanningSkillName, err)
	}
	now := p.now()
	var overdue []*tasks.Task
	for _, t := range active {
		if t.Due != nil && t.Due.Before(now) {
			overdue = append(overdue, t)
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool {
		return overdue[i].Due.Before(*overdue[j].Due)
	})
	return overdue, nil
}

// Reschedule sets a new due date on a task.
func (p *Planning) Reschedule(ctx context.Context, id string, due time.Time) (*tasks.Task, error) {
	t, err := p.tasks.Update(ctx, id, tasks.Patch{Due: &due})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PlanningSkillName, err)
	}
	return t, nil
}
