package model

import "time"

type FirstAidGuide struct {
	Condition string    `json:"condition"`
	Steps     []string  `json:"steps"`
	ImageURL  *string   `json:"imageUrl"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
