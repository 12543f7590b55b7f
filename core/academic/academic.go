// Package academic holds the grading and risk rules used by the student roster.
package academic

import (
	"math"

	"github.com/trezcool/ibdp/core/user"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var gradeThresholds = []struct {
	min   float64
	grade string
}{
	{90, "A+"}, {85, "A"}, {80, "A-"},
	{75, "B+"}, {70, "B"}, {65, "B-"},
	{60, "C+"}, {55, "C"}, {50, "C-"},
	{45, "D+"}, {40, "D"},
}

// CalculateGrade maps a percentage to its letter grade.
func CalculateGrade(pct float64) string {
	for _, t := range gradeThresholds {
		if pct >= t.min {
			return t.grade
		}
	}
	return "F"
}

// CASProgress is the share of the CAS goal achieved, in percent, capped at 100.
func CASProgress(hours, goal int) float64 {
	if goal <= 0 {
		return 0
	}
	return math.Min(float64(hours)/float64(goal)*100, 100)
}

// Risk scores a student. avg is the assessment average in percent; nil means no assessment yet,
// in which case only the CAS progress counts.
func Risk(avg *float64, casProgress float64) RiskLevel {
	switch {
	case casProgress < 50 || (avg != nil && *avg < 60):
		return RiskHigh
	case casProgress < 75 || (avg != nil && *avg < 75):
		return RiskMedium
	}
	return RiskLow
}

// StudentSummary is a roster line.
type StudentSummary struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	StudentNumber string    `json:"studentNumber"`
	Cohort        string    `json:"cohort"`
	Subjects      []string  `json:"subjects"`
	CASHours      int       `json:"casHours"`
	CASGoal       int       `json:"casGoal"`
	CASProgress   float64   `json:"casProgress"`
	AverageScore  *float64  `json:"averageScore"`
	Grade         string    `json:"grade,omitempty"`
	Risk          RiskLevel `json:"risk"`
}

func Summarize(rec user.StudentRecord) StudentSummary {
	progress := CASProgress(rec.Profile.CASHours, rec.Profile.CASGoal)
	s := StudentSummary{
		ID:            rec.ID,
		Email:         rec.Email,
		Name:          rec.DisplayName(),
		StudentNumber: rec.Profile.StudentNumber,
		Cohort:        rec.Profile.Cohort,
		Subjects:      rec.Profile.Subjects,
		CASHours:      rec.Profile.CASHours,
		CASGoal:       rec.Profile.CASGoal,
		CASProgress:   progress,
		AverageScore:  rec.AverageScore,
		Risk:          Risk(rec.AverageScore, progress),
	}
	if s.Subjects == nil {
		s.Subjects = []string{}
	}
	if rec.AverageScore != nil {
		s.Grade = CalculateGrade(*rec.AverageScore)
	}
	return s
}

// Roster summarizes records, keeping only medium and high risk students when atRiskOnly is set.
func Roster(recs []user.StudentRecord, atRiskOnly bool) []StudentSummary {
	out := make([]StudentSummary, 0, len(recs))
	for _, rec := range recs {
		s := Summarize(rec)
		if atRiskOnly && s.Risk == RiskLow {
			continue
		}
		out = append(out, s)
	}
	return out
}
