// Package analysis turns a submitted questionnaire into a profile: a career
// suitability score, two movie picks with their OMDb details and pictures of
// the pets the visitor asked for.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/deemkeen/formgate/domain"
	"github.com/deemkeen/formgate/util"
)

const (
	InputFile   = "input.json"
	ProfileFile = "profile.json"
)

var (
	ErrNotSubmitted    = errors.New("form not submitted")
	ErrAlreadyAnalysed = errors.New("form already analysed")
)

// Analyzer owns the form files in dataDir
type Analyzer struct {
	dataDir     string
	weightsPath string
	fetcher     *Fetcher
	maxScore    int
}

func NewAnalyzer(dataDir, weightsPath string, fetcher *Fetcher) *Analyzer {
	return &Analyzer{
		dataDir:     dataDir,
		weightsPath: weightsPath,
		fetcher:     fetcher,
		maxScore:    DefaultMaxScore,
	}
}

func (a *Analyzer) InputPath() string {
	return filepath.Join(a.dataDir, InputFile)
}

func (a *Analyzer) ProfilePath() string {
	return filepath.Join(a.dataDir, ProfileFile)
}

// ReadInput loads the saved form, ErrNotSubmitted when there is none
func (a *Analyzer) ReadInput() (map[string]any, error) {
	data, err := os.ReadFile(a.InputPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotSubmitted
	}
	if err != nil {
		return nil, err
	}
	var input map[string]any
	if err := sonic.ConfigStd.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("decode %s: %w", a.InputPath(), err)
	}
	if input == nil {
		return nil, fmt.Errorf("%s does not hold an object", a.InputPath())
	}
	return input, nil
}

// Analysed reports whether the saved form already produced a profile
func Analysed(input map[string]any) bool {
	done, _ := input["analysed"].(bool)
	return done
}

// SaveInput replaces the saved form and drops any profile made from the old one
func (a *Analyzer) SaveInput(input map[string]any) error {
	if err := a.writeJSON(a.InputPath(), input); err != nil {
		return err
	}
	if err := os.Remove(a.ProfilePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale profile: %w", err)
	}
	return nil
}

// Analyse scores the saved form, fetches the movie and pet data, writes
// profile.json and marks the form as analysed.
// Callers serialize concurrent calls.
func (a *Analyzer) Analyse(ctx context.Context) (*domain.Profile, error) {
	input, err := a.ReadInput()
	if err != nil {
		return nil, err
	}
	if Analysed(input) {
		return nil, ErrAlreadyAnalysed
	}

	weights, err := LoadWeights(a.weightsPath)
	if err != nil {
		return nil, err
	}
	score, err := NewProfiler(weights, a.maxScore).Score(input)
	if err != nil {
		return nil, err
	}

	jobMovie, err := a.fetcher.FetchMovie(ctx, score.JobMovie)
	if err != nil {
		return nil, err
	}
	psychMovie, err := a.fetcher.FetchMovie(ctx, score.PsychMovie)
	if err != nil {
		return nil, err
	}
	psychMovie["suitability"] = score.PsychSuitability

	pets, err := a.fetcher.DownloadPets(ctx, petList(input["pets"]))
	if err != nil {
		return nil, err
	}

	name, _ := input["name"].(string)
	profile := &domain.Profile{
		Name:   util.TitleCase(name),
		Career: score.Career,
		Movies: map[string]map[string]any{
			"job":   jobMovie,
			"psych": psychMovie,
		},
		Pets:     pets,
		MaxScore: score.MaxScore,
	}

	// The profile goes first so a failed write leaves the form open for another try
	if err := a.writeJSON(a.ProfilePath(), profile); err != nil {
		return nil, err
	}
	input["analysed"] = true
	if err := a.writeJSON(a.InputPath(), input); err != nil {
		_ = os.Remove(a.ProfilePath())
		return nil, err
	}
	log.Printf("Generated profile for %q: %s %.1f/%d", profile.Name, profile.Career.Desired, profile.Career.Suitability, profile.MaxScore)
	return profile, nil
}

func (a *Analyzer) writeJSON(path string, v any) error {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return util.WriteFileAtomic(path, data, 0644)
}

// petList accepts a single pet or a list of them
func petList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		pets := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok {
				pets = append(pets, s)
			}
		}
		return pets
	}
	return nil
}
