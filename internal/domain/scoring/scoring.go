// Package scoring ranks candidate employees for a task.
//
// A candidate's score is the product of four factors: skill match ratio,
// availability, experience and (optionally) preference. Candidates come from
// a superset skill query, so the skill ratio is 1 in practice.
package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/pkg/metrics"
)

// Default factor tables.
const (
	defaultExperienceFactor = 1.0
	defaultPreferenceBoost  = 0.1
	defaultManualBase       = 0.5
	manualLevelScale        = 10.0
)

// Candidates answers the superset skill query.
type Candidates interface {
	FindBySkills(required []string) []model.Employee
}

// Affinities exposes learned per-employee skill statistics.
type Affinities interface {
	Affinity(employeeID, skill string) (model.SkillAffinity, bool)
}

// Request describes the task to staff.
type Request struct {
	RequiredSkills []string
	// Description is accepted for API completeness; it does not affect the score.
	Description         string
	ConsiderPreferences bool
	ManualPreferences   model.ManualPreferences
}

// Factors is the per-candidate breakdown of a score.
type Factors struct {
	SkillMatch   float64 `json:"skill_match"`
	Availability float64 `json:"availability"`
	Experience   float64 `json:"experience"`
	Preference   float64 `json:"preference"`
}

// Match is one ranked candidate.
type Match struct {
	EmployeeID   string             `json:"employee_id"`
	Name         string             `json:"name"`
	Availability model.Availability `json:"availability"`
	Experience   string             `json:"experience"`
	Score        float64            `json:"score"`
	Factors      Factors            `json:"factors"`
}

// Scorer is read-only over its collaborators and safe for concurrent use.
type Scorer struct {
	candidates Candidates
	affinities Affinities

	availability      map[model.Availability]float64
	experience        map[string]float64
	defaultExperience float64
	preferenceBoost   float64
	manualBase        float64
}

// New creates a scorer. affinities may be nil, in which case only manual
// preferences can move the preference factor.
func New(candidates Candidates, affinities Affinities, opts ...Option) *Scorer {
	s := &Scorer{
		candidates: candidates,
		affinities: affinities,
		availability: map[model.Availability]float64{
			model.Free:              1.0,
			model.PartiallyAssigned: 0.7,
			model.FullyAssigned:     0.3,
		},
		experience: map[string]float64{
			model.Junior:   0.8,
			model.MidLevel: 0.9,
			model.Senior:   1.1,
			model.Expert:   1.2,
		},
		defaultExperience: defaultExperienceFactor,
		preferenceBoost:   defaultPreferenceBoost,
		manualBase:        defaultManualBase,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindBestMatch returns the top candidate. The bool is false when no
// employee holds every required skill.
func (s *Scorer) FindBestMatch(ctx context.Context, req Request) (Match, bool, error) {
	start := time.Now()
	ranked, err := s.Rank(ctx, req)
	latency := float64(time.Since(start).Milliseconds())
	switch {
	case err != nil:
		metrics.RecordMatch("invalid", latency)
		return Match{}, false, err
	case len(ranked) == 0:
		metrics.RecordMatch("no_match", latency)
		return Match{}, false, nil
	}
	metrics.RecordMatch("matched", latency)
	metrics.RecordMatchScore(ranked[0].Score)
	return ranked[0], true, nil
}

// Rank scores every candidate and orders them by score descending. Equal
// scores keep roster order.
func (s *Scorer) Rank(ctx context.Context, req Request) ([]Match, error) {
	required := model.NormalizeSkills(req.RequiredSkills)
	if len(required) == 0 {
		return nil, fmt.Errorf("%w: at least one required skill", model.ErrInvalidInput)
	}
	if err := req.ManualPreferences.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	employees := s.candidates.FindBySkills(required)
	out := make([]Match, 0, len(employees))
	for i := range employees {
		e := &employees[i]
		f := Factors{
			SkillMatch:   skillMatchRatio(required, e),
			Availability: s.availabilityFactor(e.Availability),
			Experience:   s.experienceFactor(e.Experience),
			Preference:   1.0,
		}
		if req.ConsiderPreferences {
			f.Preference = s.preferenceFactor(required, e.ID, req.ManualPreferences[e.ID])
		}
		out = append(out, Match{
			EmployeeID:   e.ID,
			Name:         e.Name,
			Availability: e.Availability,
			Experience:   e.Experience,
			Score:        f.SkillMatch * f.Availability * f.Experience * f.Preference,
			Factors:      f,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func skillMatchRatio(required []string, e *model.Employee) float64 {
	matched := 0
	for _, s := range required {
		if e.HasSkill(s) {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

func (s *Scorer) availabilityFactor(a model.Availability) float64 {
	if f, ok := s.availability[a]; ok {
		return f
	}
	return 1.0
}

func (s *Scorer) experienceFactor(tier string) float64 {
	if f, ok := s.experience[tier]; ok {
		return f
	}
	return s.defaultExperience
}

// preferenceFactor combines learned affinity with manual levels:
//
//	learned = 1 + (mean count over matched skills / matched skills) * boost
//	manual  = base + mean(level/10) over required skills with a level
func (s *Scorer) preferenceFactor(required []string, employeeID string, manual map[string]int) float64 {
	factor := 1.0

	if s.affinities != nil {
		matched, total := 0, 0
		for _, skill := range required {
			if a, ok := s.affinities.Affinity(employeeID, skill); ok {
				matched++
				total += a.Count
			}
		}
		if matched > 0 {
			avg := float64(total) / float64(matched)
			factor = 1.0 + (avg/float64(matched))*s.preferenceBoost
		}
	}

	if len(manual) > 0 {
		n, sum := 0, 0.0
		for _, skill := range required {
			if level, ok := manual[skill]; ok {
				n++
				sum += float64(level) / manualLevelScale
			}
		}
		if n > 0 {
			factor *= s.manualBase + sum/float64(n)
		}
	}
	return factor
}
