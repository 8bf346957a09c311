package model

type Course struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type NewCourse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
