package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/model"
)

var ErrInvalidTopic = errors.New("invalid topic")

type StudyAPI interface {
	CreateTopic(ctx context.Context, topic model.Topic) (model.Topic, error)
	DeleteTopic(ctx context.Context, id model.ID) error
	LogStudySession(ctx context.Context, session model.NewStudySession) (model.StudySession, error)
}

// StudyStore remembers the topics and study sessions confirmed during this
// session. The backend offers no way to list them, so nothing is loaded.
type StudyStore struct {
	api   StudyAPI
	locks *keyedLock

	mu       sync.RWMutex
	gen      uint64
	topics   []model.Topic
	sessions []model.StudySession
}

func NewStudyStore(api StudyAPI) *StudyStore {
	return &StudyStore{api: api, locks: newKeyedLock()}
}

func (s *StudyStore) AddTopic(ctx context.Context, topic model.Topic) (model.Topic, error) {
	if blank(topic.Name) {
		return model.Topic{}, ErrBlank
	}
	if topic.CourseID == "" {
		return model.Topic{}, fmt.Errorf("%w: course is required", ErrInvalidTopic)
	}
	if topic.Difficulty < 1 || topic.Difficulty > 10 {
		return model.Topic{}, fmt.Errorf("%w: difficulty must be between 1 and 10", ErrInvalidTopic)
	}
	topic.Name = strings.TrimSpace(topic.Name)

	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	created, err := s.api.CreateTopic(ctx, topic)
	if err != nil {
		return model.Topic{}, fmt.Errorf("failed to add topic: %w", err)
	}

	s.mu.Lock()
	if gen == s.gen {
		s.topics = append(s.topics, created)
	}
	s.mu.Unlock()
	log.WithField("id", created.ID).WithField("course", created.CourseID).Debug("topic added")
	return created, nil
}

// RemoveTopic deletes the topic with its sessions, the way the backend does.
func (s *StudyStore) RemoveTopic(ctx context.Context, id model.ID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	err := s.api.DeleteTopic(ctx, id)
	if removeLocally(err) {
		s.mu.Lock()
		s.dropLocked(func(t model.Topic) bool { return t.ID == id })
		s.mu.Unlock()
	}
	if err != nil {
		return fmt.Errorf("failed to remove topic %s: %w", id, err)
	}
	log.WithField("id", id).Debug("topic removed")
	return nil
}

// ForgetCourse drops the topics of a course that was removed.
func (s *StudyStore) ForgetCourse(courseID model.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(func(t model.Topic) bool { return t.CourseID == courseID })
}

func (s *StudyStore) dropLocked(match func(model.Topic) bool) {
	gone := make(map[model.ID]struct{})
	topics := s.topics[:0:0]
	for _, t := range s.topics {
		if match(t) {
			if t.ID != "" {
				gone[t.ID] = struct{}{}
			}
			continue
		}
		topics = append(topics, t)
	}
	s.topics = topics

	sessions := s.sessions[:0:0]
	for _, ss := range s.sessions {
		if _, ok := gone[ss.TopicID]; !ok {
			sessions = append(sessions, ss)
		}
	}
	s.sessions = sessions
}

func (s *StudyStore) LogSession(ctx context.Context, session model.NewStudySession) (model.StudySession, error) {
	if session.TopicID == "" || session.DurationMinutes <= 0 {
		return model.StudySession{}, fmt.Errorf("%w: a topic and a positive duration are required", ErrInvalidTopic)
	}

	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	logged, err := s.api.LogStudySession(ctx, session)
	if err != nil {
		return model.StudySession{}, fmt.Errorf("failed to log study session: %w", err)
	}

	s.mu.Lock()
	if gen == s.gen {
		s.sessions = append(s.sessions, logged)
	}
	s.mu.Unlock()
	log.WithField("id", logged.ID).WithField("topic", logged.TopicID).Debug("study session logged")
	return logged, nil
}

func (s *StudyStore) Topics() []model.Topic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Topic{}, s.topics...)
}

func (s *StudyStore) Sessions() []model.StudySession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.StudySession{}, s.sessions...)
}

func (s *StudyStore) Reset() {
	s.mu.Lock()
	s.gen++
	s.topics = nil
	s.sessions = nil
	s.mu.Unlock()
}
