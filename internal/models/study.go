package models

import "time"

type StudyGeneralities struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}

type Study struct {
	Key          string            `json:"_key"`
	TeamKey      string            `json:"teamKey"`
	Generalities StudyGeneralities `json:"generalities"`
	CreatedTS    time.Time         `json:"createdTS"`
}
