package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/model"
)

type CourseAPI interface {
	ListCourses(ctx context.Context) ([]model.Course, error)
	CreateCourse(ctx context.Context, course model.NewCourse) (model.Course, error)
	DeleteCourse(ctx context.Context, id model.ID) error
}

// CourseStore keeps the user's courses in step with the backend.
// Local state only changes after the backend confirms a write.
type CourseStore struct {
	api   CourseAPI
	locks *keyedLock

	// writes hold ops shared and loads hold it exclusively,
	// so a fetched list always includes every confirmed write.
	ops sync.RWMutex

	mu      sync.RWMutex
	gen     uint64 // bumped by Reset
	courses []model.Course
}

func NewCourseStore(api CourseAPI) *CourseStore {
	return &CourseStore{api: api, locks: newKeyedLock()}
}

// Load replaces the list with the backend's. A failed fetch leaves it empty
// and a response that arrives after Reset is dropped.
func (s *CourseStore) Load(ctx context.Context) []model.Course {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	s.ops.Lock()
	defer s.ops.Unlock()

	courses, err := s.api.ListCourses(ctx)
	if err != nil {
		log.Errorf("failed to load courses: %v", err)
		courses = nil
	}

	s.mu.Lock()
	if gen == s.gen {
		s.courses = append([]model.Course{}, courses...)
	} else {
		log.Debug("courses response after reset dropped")
	}
	s.mu.Unlock()
	return s.Courses()
}

func (s *CourseStore) Add(ctx context.Context, name string, description string) (model.Course, error) {
	if blank(name) {
		return model.Course{}, ErrBlank
	}

	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	s.ops.RLock()
	defer s.ops.RUnlock()

	created, err := s.api.CreateCourse(ctx, model.NewCourse{Name: strings.TrimSpace(name), Description: description})
	if err != nil {
		return model.Course{}, fmt.Errorf("failed to add course: %w", err)
	}

	s.mu.Lock()
	if gen == s.gen {
		s.courses = append(s.courses, created)
	}
	s.mu.Unlock()
	log.WithField("id", created.ID).WithField("name", created.Name).Debug("course added")
	return created, nil
}

// Remove deletes the course on the backend and then locally. A course the
// backend no longer knows is dropped locally and ErrNotFound is returned.
func (s *CourseStore) Remove(ctx context.Context, id model.ID) error {
	s.ops.RLock()
	defer s.ops.RUnlock()
	unlock := s.locks.Lock(id)
	defer unlock()

	err := s.api.DeleteCourse(ctx, id)
	if removeLocally(err) {
		s.mu.Lock()
		s.courses = withoutCourse(s.courses, id)
		s.mu.Unlock()
	}
	if err != nil {
		return fmt.Errorf("failed to remove course %s: %w", id, err)
	}
	log.WithField("id", id).Debug("course removed")
	return nil
}

func (s *CourseStore) Courses() []model.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Course{}, s.courses...)
}

// Reset forgets every course without touching the backend.
func (s *CourseStore) Reset() {
	s.mu.Lock()
	s.gen++
	s.courses = nil
	s.mu.Unlock()
}

func withoutCourse(courses []model.Course, id model.ID) []model.Course {
	out := courses[:0:0]
	for _, c := range courses {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
