// Package store holds the latest dashboard snapshot and arranges project
// items into board columns. Both the HTML and the terminal board read from it.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/h0rv/ghp-dashboard/internal/domain"
)

var (
	// ErrNoDashboard indicates no dashboard has been set in the store.
	ErrNoDashboard = errors.New("no dashboard loaded")
	// ErrProjectNotFound indicates the requested project is not in the snapshot.
	ErrProjectNotFound = errors.New("project not found")
	// ErrCardNotFound indicates the requested card does not exist.
	ErrCardNotFound = errors.New("card not found")
)

// Store is the current dashboard snapshot. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	dashboard *domain.Dashboard
	byName    map[string]int // project name -> index in dashboard.Projects
	errors    map[string]domain.ProjectError
}

// New creates a new empty Store instance.
func New() *Store {
	return &Store{
		byName: make(map[string]int),
		errors: make(map[string]domain.ProjectError),
	}
}

// SetDashboard replaces the snapshot. A nil dashboard resets the store.
func (s *Store) SetDashboard(d *domain.Dashboard) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dashboard = d
	s.byName = make(map[string]int)
	s.errors = make(map[string]domain.ProjectError)
	if d == nil {
		return
	}
	for i, p := range d.Projects {
		s.byName[p.Name] = i
	}
	for _, e := range d.Errors {
		s.errors[e.ProjectName] = e
	}
}

// Dashboard returns the current snapshot or ErrNoDashboard.
func (s *Store) Dashboard() (*domain.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dashboard == nil {
		return nil, ErrNoDashboard
	}
	return s.dashboard, nil
}

// Project returns a loaded project by name.
func (s *Store) Project(name string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dashboard == nil {
		return nil, ErrNoDashboard
	}
	i, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	p := s.dashboard.Projects[i]
	return &p, nil
}

// ProjectNames lists every project of the snapshot, loaded ones first in
// configuration order, then the failed ones.
func (s *Store) ProjectNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dashboard == nil {
		return []string{}
	}
	names := make([]string, 0, len(s.dashboard.Projects)+len(s.dashboard.Errors))
	for _, p := range s.dashboard.Projects {
		names = append(names, p.Name)
	}
	for _, e := range s.dashboard.Errors {
		names = append(names, e.ProjectName)
	}
	return names
}

// ProjectError returns the failure recorded for name, if any.
func (s *Store) ProjectError(name string) (domain.ProjectError, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.errors[name]
	return e, ok
}

// Card looks up one item of a loaded project.
func (s *Store) Card(projectName, itemID string) (domain.Item, error) {
	p, err := s.Project(projectName)
	if err != nil {
		return domain.Item{}, err
	}
	for _, item := range p.Items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return domain.Item{}, ErrCardNotFound
}

// Column is one board column.
type Column struct {
	Name  string
	Items []domain.Item
}

// GroupByColumn arranges a project's items into columns. Configured TODO
// columns come first in their configured order, each present even when empty.
// Items whose status is missing or not configured land in a trailing
// NoStatus column, which only exists when it has items. A project without
// TODO columns gets one column per status in order of first appearance.
func GroupByColumn(p domain.Project) []Column {
	columns := make([]Column, 0, len(p.TodoColumns)+1)
	index := make(map[string]int, len(p.TodoColumns))
	for _, name := range p.TodoColumns {
		if _, dup := index[name]; dup {
			continue
		}
		index[name] = len(columns)
		columns = append(columns, Column{Name: name, Items: []domain.Item{}})
	}
	discover := len(p.TodoColumns) == 0

	var unsorted []domain.Item
	for _, item := range p.Items {
		status, ok := item.Status()
		if !ok {
			unsorted = append(unsorted, item)
			continue
		}
		i, known := index[status]
		if !known {
			if !discover {
				unsorted = append(unsorted, item)
				continue
			}
			i = len(columns)
			index[status] = i
			columns = append(columns, Column{Name: status, Items: []domain.Item{}})
		}
		columns[i].Items = append(columns[i].Items, item)
	}

	if len(unsorted) > 0 {
		columns = append(columns, Column{Name: domain.NoStatus, Items: unsorted})
	}
	return columns
}
