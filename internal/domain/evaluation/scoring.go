package evaluation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ToPercent turns a 0–1 fraction into a percentage. Values already on the
// percentage scale pass through.
func ToPercent(weight float64) float64 {
	if weight > 0 && weight <= 1 {
		return math.Round(weight*100*1e6) / 1e6
	}
	return weight
}

func ratioScore(numerator, denominator float64) float64 {
	if denominator <= 0 || math.IsNaN(numerator) || math.IsNaN(denominator) {
		return 0
	}
	return clamp(numerator/denominator*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func ObjectiveScore(o Objective) float64 {
	return ratioScore(o.Achieved, o.Target)
}

func CompetencyScore(c Competency) float64 {
	return ratioScore(c.ActualLevel, c.RequiredLevel)
}

// Score is an aggregate that may be absent. The zero value is the "no data"
// sentinel.
type Score struct {
	Value float64
	Valid bool
}

const noScore = "00.0"

func (s Score) String() string {
	if !s.Valid {
		return noScore
	}
	return fmt.Sprintf("%.1f", s.Value)
}

// Float collapses the sentinel to 0, the numeric form some callers expect.
func (s Score) Float() float64 {
	if !s.Valid {
		return 0
	}
	return s.Value
}

func (s Score) MarshalJSON() ([]byte, error) {
	payload := struct {
		Value   *float64 `json:"value"`
		Display string   `json:"display"`
	}{Display: s.String()}
	if s.Valid {
		v := math.Round(s.Value*10) / 10
		payload.Value = &v
	}
	return json.Marshal(payload)
}

// ParseScore accepts both forms of the sentinel ("00.0" and 0) as no data.
func ParseScore(raw string) Score {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == noScore {
		return Score{}
	}
	var v float64
	if _, err := fmt.Sscanf(raw, "%g", &v); err != nil || v == 0 {
		return Score{}
	}
	return Score{Value: v, Valid: true}
}

func weightedAverage(scores, weights []float64) Score {
	var weighted, total float64
	for i := range scores {
		w := ToPercent(weights[i])
		weighted += scores[i] * w
		total += w
	}
	if total <= 0 {
		return Score{}
	}
	return Score{Value: weighted / total, Valid: true}
}

func OverallObjectiveScore(objectives []Objective) Score {
	scores := make([]float64, len(objectives))
	weights := make([]float64, len(objectives))
	for i, o := range objectives {
		scores[i] = ObjectiveScore(o)
		weights[i] = o.Weight
	}
	return weightedAverage(scores, weights)
}

func OverallCompetencyScore(competencies []Competency) Score {
	scores := make([]float64, len(competencies))
	weights := make([]float64, len(competencies))
	for i, c := range competencies {
		scores[i] = CompetencyScore(c)
		weights[i] = c.Weight
	}
	return weightedAverage(scores, weights)
}

// CombinedScore is the client-side evaluation score pushed by the
// self-evaluation submit path. The server may recompute it.
func CombinedScore(objectives, competencies Score) float64 {
	return math.Round((objectives.Float() + competencies.Float()) / 2)
}

type Scores struct {
	Objectives   Score   `json:"objectives"`
	Competencies Score   `json:"competencies"`
	Combined     float64 `json:"combined"`
}

func ComputeScores(objectives []Objective, competencies []Competency) Scores {
	obj := OverallObjectiveScore(objectives)
	comp := OverallCompetencyScore(competencies)
	return Scores{Objectives: obj, Competencies: comp, Combined: CombinedScore(obj, comp)}
}

func sumOtherWeights(weights map[string]float64, editingID string) float64 {
	var sum float64
	for id, w := range weights {
		if editingID != "" && id == editingID {
			continue
		}
		sum += ToPercent(w)
	}
	return sum
}

func objectiveWeights(objectives []Objective) map[string]float64 {
	out := make(map[string]float64, len(objectives))
	for i, o := range objectives {
		key := o.ID
		if key == "" {
			key = fmt.Sprintf("#%d", i)
		}
		out[key] += o.Weight
	}
	return out
}

// RemainingObjectiveWeight is the largest weight the objective being edited
// (or a new one, when editingID is empty) may take.
func RemainingObjectiveWeight(objectives []Objective, editingID string) float64 {
	others := sumOtherWeights(objectiveWeights(objectives), editingID)
	return math.Max(0, math.Min(MaxObjectiveWeight, WeightBudget-others))
}

func ValidateObjectiveWeight(objectives []Objective, editingID string, weight float64) error {
	weight = ToPercent(weight)
	if weight < MinObjectiveWeight || weight > MaxObjectiveWeight {
		return &ValidationError{Field: "weight", Message: fmt.Sprintf("weight must be between %d%% and %d%%", MinObjectiveWeight, MaxObjectiveWeight)}
	}
	others := sumOtherWeights(objectiveWeights(objectives), editingID)
	if others+weight > WeightBudget {
		return &ValidationError{Field: "weight", Message: fmt.Sprintf("total weight would be %.0f%%; only %.0f%% remains", others+weight, math.Max(0, WeightBudget-others))}
	}
	if limit := RemainingObjectiveWeight(objectives, editingID); weight > limit {
		return &ValidationError{Field: "weight", Message: fmt.Sprintf("weight cannot exceed %.0f%%", limit)}
	}
	return nil
}

func validStatus(status ObjectiveStatus) bool {
	for _, candidate := range ObjectiveStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// ValidateObjective checks a create (ID empty) or update against its
// siblings. Siblings may include the objective being edited.
func ValidateObjective(o Objective, siblings []Objective) error {
	var issues ValidationErrors
	if strings.TrimSpace(o.Title) == "" {
		issues.add("title", "title is required")
	}
	if o.Target < MinObjectiveMark || o.Target > MaxObjectiveMark {
		issues.add("target", fmt.Sprintf("target must be between %d and %d", MinObjectiveMark, MaxObjectiveMark))
	}
	if o.Achieved < MinObjectiveMark || o.Achieved > MaxObjectiveMark {
		issues.add("achieved", fmt.Sprintf("achieved must be between %d and %d", MinObjectiveMark, MaxObjectiveMark))
	}
	if o.Status != "" && !validStatus(o.Status) {
		issues.add("status", "status must be one of Not started, In-progress, Completed")
	}
	if o.ID == "" && len(siblings) >= MaxObjectives {
		issues = append(issues, fieldError("objectives", ErrObjectiveLimit))
	}
	if err := ValidateObjectiveWeight(siblings, o.ID, o.Weight); err != nil {
		issues = append(issues, err.(*ValidationError))
	}
	return issues.err()
}

func validCategory(category Category) bool {
	for _, candidate := range Categories {
		if candidate == category {
			return true
		}
	}
	return false
}

func RemainingCompetencyWeight(competencies []Competency, editingID string) float64 {
	weights := make(map[string]float64, len(competencies))
	for i, c := range competencies {
		key := c.ID
		if key == "" {
			key = fmt.Sprintf("#%d", i)
		}
		weights[key] += c.Weight
	}
	return math.Max(0, WeightBudget-sumOtherWeights(weights, editingID))
}

// ValidateCompetency uses the 0–4 level scale for both the required and the
// actual level.
func ValidateCompetency(c Competency, siblings []Competency) error {
	var issues ValidationErrors
	if strings.TrimSpace(c.Name) == "" {
		issues.add("name", "name is required")
	}
	if !validCategory(c.Category) {
		issues.add("category", "category must be one of Core, Leadership, Functional")
	}
	if c.RequiredLevel < MinRequiredLevel || c.RequiredLevel > MaxLevel {
		issues.add("required_level", fmt.Sprintf("required level must be between %d and %d", MinRequiredLevel, MaxLevel))
	}
	if c.ActualLevel < 0 || c.ActualLevel > MaxLevel {
		issues.add("actual_level", fmt.Sprintf("actual level must be between 0 and %d", MaxLevel))
	}
	weight := ToPercent(c.Weight)
	switch {
	case weight <= 0 || weight > WeightBudget:
		issues.add("weight", "weight must be greater than 0% and at most 100%")
	case weight > RemainingCompetencyWeight(siblings, c.ID):
		issues.add("weight", fmt.Sprintf("weight cannot exceed %.0f%%", RemainingCompetencyWeight(siblings, c.ID)))
	}
	return issues.err()
}
