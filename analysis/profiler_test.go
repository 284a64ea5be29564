package analysis

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/deemkeen/formgate/domain"
)

func traitWeights(o, c, e, a, n float64) map[string]float64 {
	return map[string]float64{"O": o, "C": c, "E": e, "A": a, "N": n}
}

func testWeights() *Weights {
	return &Weights{
		Jobs: map[string]domain.JobRef{
			"ceo": {
				Weights: traitWeights(1, 1, 1, 1, 1),
				Movie:   domain.MovieRef{Title: "The Wolf of Wall Street", Year: float64(2013)},
			},
			"doctor": {
				Weights: traitWeights(0.5, 2, -1, 1, -2),
				Movie:   domain.MovieRef{Title: "Patch Adams", Year: "1998"},
			},
		},
		Movies: map[string]domain.MovieRef{
			"I":  {Title: "The Lord of the Rings", Year: float64(2001), Weights: traitWeights(1, 0, 0, 0, 0)},
			"II": {Title: "Superbad", Year: float64(2007), Weights: traitWeights(0, 0, 1, 0, 0)},
		},
	}
}

// form answers every question with the same raw value
func form(job string, answer any) map[string]any {
	input := map[string]any{"job": job, "name": "test"}
	for q := 1; q <= 20; q++ {
		input["question"+strconv.Itoa(q)] = answer
	}
	return input
}

// agreeing answers every question in the direction that raises its trait
func agreeing(job string) map[string]any {
	input := form(job, "5")
	for q := range reversedQuestions {
		input["question"+strconv.Itoa(q)] = "1"
	}
	return input
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreNeutralAnswers(t *testing.T) {
	p := NewProfiler(testWeights(), 0)

	for _, answer := range []any{"3", float64(3)} {
		score, err := p.Score(form("doctor", answer))
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if !closeTo(score.Career.Suitability, 2.5) {
			t.Errorf("Expected 2.5 for neutral answers, got %v", score.Career.Suitability)
		}
		if score.PsychMovie.Title != "The Lord of the Rings" {
			t.Errorf("Expected the default movie, got %s", score.PsychMovie.Title)
		}
		if !closeTo(score.PsychSuitability, 2.5) {
			t.Errorf("Expected default suitability 2.5, got %v", score.PsychSuitability)
		}
		if score.MaxScore != DefaultMaxScore {
			t.Errorf("Expected max score %d, got %d", DefaultMaxScore, score.MaxScore)
		}
	}
}

func TestScoreAgreeingAnswers(t *testing.T) {
	p := NewProfiler(testWeights(), 5)

	score, err := p.Score(agreeing("ceo"))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score.Career.Desired != "ceo" {
		t.Errorf("Expected ceo, got %s", score.Career.Desired)
	}
	if !closeTo(score.Career.Suitability, 5) {
		t.Errorf("Expected full marks, got %v", score.Career.Suitability)
	}
	if score.JobMovie.Title != "The Wolf of Wall Street" {
		t.Errorf("Unexpected job movie %s", score.JobMovie.Title)
	}
	// Both movies reach full marks; the first one to beat half marks wins
	if score.PsychMovie.Title != "The Lord of the Rings" || !closeTo(score.PsychSuitability, 5) {
		t.Errorf("Unexpected psych pick %s (%v)", score.PsychMovie.Title, score.PsychSuitability)
	}
}

func TestScorePicksBestMovie(t *testing.T) {
	p := NewProfiler(testWeights(), 5)

	// Openness strongly disagreed, extraversion strongly agreed
	input := form("ceo", "3")
	for _, q := range []int{3, 7, 11} {
		input["question"+strconv.Itoa(q)] = "1"
	}
	for _, q := range []int{1, 8, 20} {
		input["question"+strconv.Itoa(q)] = "5"
	}
	for _, q := range []int{14, 16} {
		input["question"+strconv.Itoa(q)] = "1"
	}

	score, err := p.Score(input)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score.PsychMovie.Title != "Superbad" {
		t.Errorf("Expected Superbad, got %s", score.PsychMovie.Title)
	}
	if !closeTo(score.PsychSuitability, 5) {
		t.Errorf("Expected 5, got %v", score.PsychSuitability)
	}
}

func TestScoreNegativeWeights(t *testing.T) {
	p := NewProfiler(testWeights(), 5)

	// Everything maximally agreed: the negative traits pull the doctor score down
	score, err := p.Score(agreeing("doctor"))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	// sum = 2*(3*0.5 + 5*2 + 5*-1 + 4*1 + 3*-2) = 9, range [-53, 53]
	want := 5 * (9.0 + 53) / 106
	if !closeTo(score.Career.Suitability, want) {
		t.Errorf("Expected %v, got %v", want, score.Career.Suitability)
	}
}

func TestScoreErrors(t *testing.T) {
	p := NewProfiler(testWeights(), 5)

	tests := []struct {
		name  string
		input map[string]any
		want  error
	}{
		{name: "unknown job", input: form("wizard", "3"), want: ErrUnknownJob},
		{name: "missing job", input: map[string]any{"question1": "3"}, want: ErrUnknownJob},
		{name: "job without weights", input: form("astronaut", "3")},
		{name: "answer out of range", input: form("ceo", "9")},
		{name: "answer not a number", input: form("ceo", "lots")},
		{name: "unknown question", input: map[string]any{"job": "ceo", "question42": "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Score(tt.input)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadWeights(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "weights.json")
		content := `{
			"jobs": {"ceo": {"weights": {"O": 1, "C": 1, "E": 1, "A": 1, "N": 1}, "movie": {"title": "Wall Street", "year": 1987}}},
			"movies": {"I": {"title": "The Lord of the Rings", "year": 2001, "weights": {"O": 1, "C": 0, "E": 0, "A": 0, "N": 0}}}
		}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		w, err := LoadWeights(path)
		if err != nil {
			t.Fatalf("LoadWeights failed: %v", err)
		}
		if w.Jobs["ceo"].Movie.Title != "Wall Street" {
			t.Errorf("Unexpected job movie %+v", w.Jobs["ceo"].Movie)
		}
		if w.Movies["I"].Weights["O"] != 1 {
			t.Errorf("Unexpected movie weights %+v", w.Movies["I"].Weights)
		}
	})

	t.Run("no default movie", func(t *testing.T) {
		path := filepath.Join(dir, "nodefault.json")
		if err := os.WriteFile(path, []byte(`{"jobs": {}, "movies": {}}`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadWeights(path); err == nil {
			t.Error("Expected an error without movie I")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadWeights(filepath.Join(dir, "missing.json")); err == nil {
			t.Error("Expected an error for a missing file")
		}
	})
}
