package model

// Topic is a part of a course to study before a deadline. Difficulty is
// the user's estimate on a 1 to 10 scale.
type Topic struct {
	ID                ID      `json:"id,omitempty"`
	CourseID          ID      `json:"course_id"`
	Name              string  `json:"name"`
	Difficulty        float64 `json:"estimated_difficulty"`
	DaysUntilDeadline int     `json:"days_until_deadline"`
}

type StudySession struct {
	ID              ID  `json:"id"`
	TopicID         ID  `json:"topic_id"`
	DurationMinutes int `json:"duration"`
}

type NewStudySession struct {
	TopicID         ID      `json:"topic_id"`
	DurationMinutes int     `json:"duration_minutes"`
	Completed       bool    `json:"completed"`
	ConfidenceLevel float64 `json:"confidence_level"`
}
