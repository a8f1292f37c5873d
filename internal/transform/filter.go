package transform

import (
	"strings"

	"github.com/h0rv/ghp-dashboard/internal/domain"
)

// FilterToTodoColumns keeps the items whose status exactly matches one of
// todoColumns, in their original order. Items without a status are dropped.
// An empty todoColumns returns items unchanged.
func FilterToTodoColumns(items []domain.Item, todoColumns []string) []domain.Item {
	if len(todoColumns) == 0 {
		return items
	}

	wanted := make(map[string]bool, len(todoColumns))
	for _, col := range todoColumns {
		wanted[col] = true
	}

	filtered := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if status, ok := item.Status(); ok && wanted[status] {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Vocabulary lists the status values counted in each stats bucket. Matching
// ignores case. Statuses outside every list are counted only in ByStatus.
type Vocabulary struct {
	Todo       []string
	InProgress []string
	Completed  []string
}

// DefaultVocabulary returns the built-in bucket vocabularies.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Todo:       []string{"TODO", "Todo", "To Do", "Backlog"},
		InProgress: []string{"In Progress", "Doing", "In Review", "Review"},
		Completed:  []string{"Done", "Completed", "Closed", "Shipped"},
	}
}

// ComputeStats aggregates items into buckets. It is a heuristic: projects
// using other column names are undercounted.
func ComputeStats(items []domain.Item, vocab Vocabulary) domain.Stats {
	stats := domain.Stats{
		Total:    len(items),
		ByStatus: make(map[string]int),
	}

	for _, item := range items {
		status, ok := item.Status()
		if !ok {
			status = domain.NoStatus
		}
		stats.ByStatus[status]++

		if ok {
			switch {
			case containsFold(vocab.Todo, status):
				stats.Todo++
			case containsFold(vocab.InProgress, status):
				stats.InProgress++
			case containsFold(vocab.Completed, status):
				stats.Completed++
			}
		}

		switch item.Type {
		case domain.ItemTypeIssue:
			if item.State == domain.ItemStateOpen {
				stats.OpenIssues++
			}
		case domain.ItemTypePullRequest:
			stats.PullRequests++
		}
	}
	return stats
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
