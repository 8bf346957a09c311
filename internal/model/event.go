package model

type Event struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
	Date  Date   `json:"date"`
}

type NewEvent struct {
	Title string `json:"title"`
	Date  Date   `json:"date"`
}
