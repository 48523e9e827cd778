package dummydb

import (
	"sort"
	"strings"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// sortBy orders items by the given orderings; cmp compares two items on one field.
func sortBy[T any](items []T, ordering []core.DBOrdering, fallback core.DBOrdering, cmp func(a, b T, field string) int) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{fallback}
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ordering {
			c := cmp(items[i], items[j], ord.Field)
			if c == 0 {
				continue
			}
			return (c < 0) == ord.Ascending
		}
		return false
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// serialLess orders siblings by serial number; ties go to the oldest record, then the smallest ID.
func serialLess(serialA, serialB int, createdA, createdB time.Time, idA, idB string) bool {
	if serialA != serialB {
		return serialA < serialB
	}
	if c := compareTime(createdA, createdB); c != 0 {
		return c < 0
	}
	return idA < idB
}

func (t *tables) courseModules(courseID string) []course.Module {
	modules := make([]course.Module, 0)
	for _, m := range t.modules {
		if m.CourseID == courseID {
			modules = append(modules, m)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		a, b := modules[i], modules[j]
		return serialLess(a.SerialNumber, b.SerialNumber, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return modules
}

func (t *tables) moduleTopics(moduleID string) []course.Topic {
	topics := make([]course.Topic, 0)
	for _, tp := range t.topics {
		if tp.ModuleID == moduleID {
			topics = append(topics, tp)
		}
	}
	sort.Slice(topics, func(i, j int) bool {
		a, b := topics[i], topics[j]
		return serialLess(a.SerialNumber, b.SerialNumber, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return topics
}
