package api

import (
	"errors"
	"strings"
	"time"

	"github.com/okian/matchmaker/internal/domain/assignment"
	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/internal/domain/scoring"
)

type searchRequest struct {
	Skills []string `json:"skills" validate:"required,min=1,dive,required"`
}

type matchRequest struct {
	Description         string                  `json:"description"`
	RequiredSkills      []string                `json:"required_skills" validate:"required,min=1,dive,required"`
	ConsiderPreferences bool                    `json:"consider_preferences"`
	ManualPreferences   model.ManualPreferences `json:"manual_preferences"`
}

func (m *matchRequest) toDomain() scoring.Request {
	return scoring.Request{
		RequiredSkills:      m.RequiredSkills,
		Description:         m.Description,
		ConsiderPreferences: m.ConsiderPreferences,
		ManualPreferences:   m.ManualPreferences,
	}
}

type createTaskRequest struct {
	Name           string   `json:"name" validate:"required"`
	Description    string   `json:"description" validate:"required"`
	RequiredSkills []string `json:"required_skills" validate:"required,min=1,dive,required"`
	Priority       string   `json:"priority" validate:"required"`
	// Deadline is RFC3339 or a plain date; a date means the end of that day in UTC.
	Deadline   string `json:"deadline"`
	EmployeeID string `json:"employee_id" validate:"required"`
}

func (c *createTaskRequest) toDomain() (assignment.NewTask, error) {
	p, err := model.ParsePriority(c.Priority)
	if err != nil {
		return assignment.NewTask{}, err
	}
	deadline, err := parseDeadline(c.Deadline)
	if err != nil {
		return assignment.NewTask{}, err
	}
	return assignment.NewTask{
		Name:           c.Name,
		Description:    c.Description,
		RequiredSkills: c.RequiredSkills,
		Priority:       p,
		Deadline:       deadline,
		EmployeeID:     c.EmployeeID,
	}, nil
}

func parseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errors.New("deadline must be RFC3339 or YYYY-MM-DD")
	}
	return d.Add(24*time.Hour - time.Second), nil
}

type progressRequest struct {
	Progress *int `json:"progress" validate:"required,min=0,max=100"`
}

type reassignRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
}

type learnResponse struct {
	Learned bool `json:"learned"`
}
