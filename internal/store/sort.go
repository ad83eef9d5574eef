package store

import (
	"sort"

	"github.com/chepyr/magna-todo/shared/models"
)

// sortByCreatedAt orders tasks oldest first. A task without a timestamp
// compares equal to everything, so it stays where the collection put it.
func sortByCreatedAt(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].CreatedAt, tasks[j].CreatedAt
		if a == nil || b == nil {
			return false
		}
		return a.Before(*b)
	})
}
