package simulate

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Priority buckets out of ten draws.
const (
	priorityBuckets = 10
	highBucketMax   = 2 // 0..2 -> High
	mediumBucketMax = 6 // 3..6 -> Medium, rest Low
	maxSkillsDrawn  = 3
	lateShare       = 0.15
)

// taskSpec is one planned task flow.
type taskSpec struct {
	Key         string
	Name        string
	Description string
	Skills      []string
	Priority    string
	Deadline    time.Time
	Reassign    bool
	Complete    bool
}

// generator builds task specs from the live skill list.
type generator struct {
	rng    *rand.Rand
	skills []string
	now    func() time.Time
}

func newGenerator(seed uint64, skills []string, now func() time.Time) *generator {
	return &generator{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		skills: skills,
		now:    now,
	}
}

// generate returns n specs. Each task needs one to three distinct skills.
func (g *generator) generate(n int, completeShare, reassignShare float64) []taskSpec {
	out := make([]taskSpec, n)
	for i := range out {
		out[i] = taskSpec{
			Key:         uuid.NewString(),
			Name:        "sim-task-" + strconv.Itoa(i+1),
			Description: "simulated workload",
			Skills:      g.pickSkills(),
			Priority:    g.pickPriority(),
			Deadline:    g.pickDeadline(),
			Reassign:    g.rng.Float64() < reassignShare,
			Complete:    g.rng.Float64() < completeShare,
		}
	}
	return out
}

func (g *generator) pickSkills() []string {
	k := 1 + g.rng.IntN(min(maxSkillsDrawn, len(g.skills)))
	idx := g.rng.Perm(len(g.skills))[:k]
	out := make([]string, k)
	for i, j := range idx {
		out[i] = g.skills[j]
	}
	return out
}

func (g *generator) pickPriority() string {
	switch b := g.rng.IntN(priorityBuckets); {
	case b <= highBucketMax:
		return "High"
	case b <= mediumBucketMax:
		return "Medium"
	default:
		return "Low"
	}
}

// pickDeadline mostly lands in the next two weeks; a share is already past so
// completions exercise the late path.
func (g *generator) pickDeadline() time.Time {
	now := g.now().UTC()
	if g.rng.Float64() < lateShare {
		return now.Add(-time.Duration(1+g.rng.IntN(72)) * time.Hour).Truncate(time.Second)
	}
	return now.Add(time.Duration(24+g.rng.IntN(14*24)) * time.Hour).Truncate(time.Second)
}
