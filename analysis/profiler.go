package analysis

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/deemkeen/formgate/domain"
)

const (
	DefaultMaxScore = 5
	defaultMovieKey = "I"
	questionPrefix  = "question"
)

// Jobs a form may ask to be scored against
var Jobs = []string{"ceo", "astronaut", "doctor", "model", "rockstar", "garbage"}

// Every question maps to one of the Big Five traits
var traitOfQuestion = func() map[int]string {
	traits := map[string][]int{
		"O": {3, 7, 11},
		"C": {2, 5, 10, 12, 15},
		"E": {1, 8, 14, 16, 20},
		"A": {4, 9, 17, 18},
		"N": {6, 13, 19},
	}
	m := make(map[int]string)
	for trait, questions := range traits {
		for _, q := range questions {
			m[q] = trait
		}
	}
	return m
}()

// Questions worded so that agreeing means less of the trait
var reversedQuestions = map[int]bool{5: true, 6: true, 9: true, 12: true, 14: true, 16: true, 17: true, 18: true}

var ErrUnknownJob = errors.New("unknown job")

// Weights is the content of weights.json
type Weights struct {
	Jobs   map[string]domain.JobRef   `json:"jobs"`
	Movies map[string]domain.MovieRef `json:"movies"`
}

func LoadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w Weights
	if err := sonic.ConfigStd.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if _, ok := w.Movies[defaultMovieKey]; !ok {
		return nil, fmt.Errorf("%s has no default movie %q", path, defaultMovieKey)
	}
	return &w, nil
}

// Score is the outcome of scoring one form
type Score struct {
	Career           domain.Career
	JobMovie         domain.MovieRef
	PsychMovie       domain.MovieRef
	PsychSuitability float64
	MaxScore         int
}

// Profiler scores form answers against job and movie trait weights
type Profiler struct {
	weights  *Weights
	maxScore int
}

func NewProfiler(weights *Weights, maxScore int) *Profiler {
	if maxScore <= 0 {
		maxScore = DefaultMaxScore
	}
	return &Profiler{weights: weights, maxScore: maxScore}
}

type weighted struct {
	sum float64
	min float64
}

// add records answer a (already shifted to [-2, 2]) under weight w.
// The worst case answer is -2 for a positive weight and 2 for a negative one.
func (s *weighted) add(a, w float64) {
	s.sum += a * w
	if w < 0 {
		s.min += w * 2
	} else {
		s.min += w * -2
	}
}

// normalise maps the weighted sum onto [0, maxScore]. The range is symmetric
// since answers run from -2 to 2.
func (p *Profiler) normalise(s weighted) float64 {
	top := float64(p.maxScore)
	lo, hi := s.min, -s.min
	if hi == lo {
		return top / 2
	}
	score := top * (s.sum - lo) / (hi - lo)
	return max(0, min(score, top))
}

// Score computes job suitability and the best matching "psych" movie for input
func (p *Profiler) Score(input map[string]any) (*Score, error) {
	job, _ := input["job"].(string)
	if !slices.Contains(Jobs, job) {
		return nil, fmt.Errorf("%w %q, must be one of %v", ErrUnknownJob, job, Jobs)
	}
	jobRef, ok := p.weights.Jobs[job]
	if !ok {
		return nil, fmt.Errorf("no weights for job %q", job)
	}

	movieKeys := make([]string, 0, len(p.weights.Movies))
	for k := range p.weights.Movies {
		movieKeys = append(movieKeys, k)
	}
	slices.Sort(movieKeys)

	var jobScore weighted
	movieScores := make(map[string]*weighted, len(movieKeys))
	for _, k := range movieKeys {
		movieScores[k] = &weighted{}
	}

	for key, value := range input {
		if !strings.HasPrefix(key, questionPrefix) {
			continue
		}
		q, err := strconv.Atoi(key[len(questionPrefix):])
		if err != nil {
			return nil, fmt.Errorf("bad question key %q", key)
		}
		trait, ok := traitOfQuestion[q]
		if !ok {
			return nil, fmt.Errorf("unknown question %d", q)
		}
		a, err := likert(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if reversedQuestions[q] {
			a = 6 - a
		}
		shifted := float64(a - 3)

		w, ok := jobRef.Weights[trait]
		if !ok {
			return nil, fmt.Errorf("job %q has no weight for trait %s", job, trait)
		}
		jobScore.add(shifted, w)

		for _, k := range movieKeys {
			mw, ok := p.weights.Movies[k].Weights[trait]
			if !ok {
				return nil, fmt.Errorf("movie %q has no weight for trait %s", k, trait)
			}
			movieScores[k].add(shifted, mw)
		}
	}

	// All neutral answers put every movie at half marks, so the default
	// wins unless some movie beats it outright
	best := p.weights.Movies[defaultMovieKey]
	bestScore := float64(p.maxScore) / 2
	for _, k := range movieKeys {
		if s := p.normalise(*movieScores[k]); s > bestScore {
			bestScore = s
			best = p.weights.Movies[k]
		}
	}

	return &Score{
		Career: domain.Career{
			Desired:     job,
			Suitability: p.normalise(jobScore),
		},
		JobMovie:         jobRef.Movie,
		PsychMovie:       best,
		PsychSuitability: bestScore,
		MaxScore:         p.maxScore,
	}, nil
}

// likert reads a 1-5 answer sent either as a number or a string
func likert(v any) (int, error) {
	var a int
	switch t := v.(type) {
	case float64:
		a = int(t)
	case int:
		a = t
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("answer %q is not a number", t)
		}
		a = n
	default:
		return 0, fmt.Errorf("answer %v has unsupported type %T", v, v)
	}
	if a < 1 || a > 5 {
		return 0, fmt.Errorf("answer %d out of range 1-5", a)
	}
	return a, nil
}
