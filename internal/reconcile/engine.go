// Package reconcile classifies this year's programs against last year's
// certified list.
package reconcile

import (
	"log/slog"
	"strings"

	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
)

// reviewComments route a continuing program to manual review.
var reviewComments = []string{"teach out", "withdrawn"}

// Summary counts records per outcome.
type Summary struct {
	New           int
	StillApproved int
	ManualReview  int
	TeachOut      int
	Removed       int
}

// Counts flattens the summary for storage in a run document.
func (s Summary) Counts() map[string]int {
	return map[string]int{
		"new":           s.New,
		"stillApproved": s.StillApproved,
		"manualReview":  s.ManualReview,
		"teachOut":      s.TeachOut,
		"removed":       s.Removed,
	}
}

// SummaryFromCounts is the inverse of Counts. Missing keys count zero.
func SummaryFromCounts(m map[string]int) Summary {
	return Summary{
		New:           m["new"],
		StillApproved: m["stillApproved"],
		ManualReview:  m["manualReview"],
		TeachOut:      m["teachOut"],
		Removed:       m["removed"],
	}
}

// Engine reconciles record sets. It holds no per-run state.
type Engine struct {
	currentTerm string
	flagText    string
	labels      config.CatalogLabels
	format      *Formatter
	logger      *slog.Logger
}

// New builds an Engine from the catalog rules. A nil logger uses
// slog.Default.
func New(rules *config.Rules, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		currentTerm: rules.CurrentTerm,
		flagText:    rules.FlagText,
		labels:      rules.CatalogLabels,
		format:      NewFormatter(logger),
		logger:      logger,
	}
}

// FromPrograms lifts freshly extracted records into reconciled records with
// no prior-year data.
func FromPrograms(records []models.ProgramRecord) []models.ReconciledRecord {
	out := make([]models.ReconciledRecord, len(records))
	for i, r := range records {
		out[i] = models.ReconciledRecord{ProgramRecord: r}
	}
	return out
}

// Reconcile matches thisYear against lastYear by normalized name. This year's
// rows come first in their original order, followed by last year's rows that
// have no match this year. Inputs are not modified.
func (e *Engine) Reconcile(thisYear, lastYear []models.ReconciledRecord) ([]models.ReconciledRecord, Summary) {
	prior := make(map[string]models.ReconciledRecord, len(lastYear))
	for _, r := range lastYear {
		key := models.NormalizeName(r.Name)
		if _, dup := prior[key]; !dup {
			prior[key] = r
		}
	}

	var sum Summary
	current := make(map[string]bool, len(thisYear))
	out := make([]models.ReconciledRecord, 0, len(thisYear)+len(lastYear))

	for _, r := range thisYear {
		key := models.NormalizeName(r.Name)
		current[key] = true

		prev, found := prior[key]
		if !found {
			r.ApprovalStatus = models.StatusNew
			r.EffectiveDate = e.currentTerm
			r.CatalogName = e.catalogLabel(r.EducationalObjective)
		} else {
			r = e.continuing(r, prev)
		}
		r.Flag = e.flag(r.ApprovalStatus)
		r.Name = e.format.FormatName(r.Name)
		sum.count(r.ApprovalStatus)
		out = append(out, r)
	}

	for _, prev := range lastYear {
		key := models.NormalizeName(prev.Name)
		if current[key] {
			continue
		}
		// Mark so a duplicated prior row is emitted once.
		current[key] = true

		removed := prev
		removed.ApprovalStatus = models.StatusManualReview
		removed.Flag = e.flag(removed.ApprovalStatus)
		removed.Name = e.format.FormatName(prev.Name)
		sum.Removed++
		out = append(out, removed)
		e.logger.Info("Program missing from this year's catalogs", "program", prev.Name, "effectiveDate", prev.EffectiveDate)
	}

	e.logger.Info("Reconciliation complete",
		"new", sum.New, "stillApproved", sum.StillApproved, "manualReview", sum.ManualReview,
		"teachOut", sum.TeachOut, "removed", sum.Removed)
	return out, sum
}

// continuing resolves a program present in both years.
func (e *Engine) continuing(r, prev models.ReconciledRecord) models.ReconciledRecord {
	comment := strings.ToLower(r.Comments + " " + prev.Comments)
	switch {
	case containsAny(comment, reviewComments):
		r.ApprovalStatus = models.StatusManualReview
	case prev.ApprovalStatus == models.StatusTeachOutPhase:
		r.ApprovalStatus = models.StatusTeachOutPhase
	default:
		r.ApprovalStatus = models.StatusStillApproved
	}

	if strings.TrimSpace(r.EffectiveDate) == "" {
		r.EffectiveDate = prev.EffectiveDate
	}
	if strings.TrimSpace(r.Comments) == "" {
		r.Comments = prev.Comments
	}

	if r.ApprovalStatus == models.StatusTeachOutPhase {
		r.CatalogName = prev.CatalogName
	} else {
		r.CatalogName = e.catalogLabel(r.EducationalObjective)
	}
	return r
}

// catalogLabel attributes a program to the publication it appears in.
func (e *Engine) catalogLabel(obj models.EducationalObjective) string {
	s := strings.ToLower(obj.String())
	switch {
	case obj == models.ObjectiveGradCert || strings.Contains(s, "graduate certificate"):
		return e.labels.Graduate
	case strings.Contains(s, "bachelor") || s == "certificate":
		return e.labels.Undergraduate
	default:
		return e.labels.Graduate
	}
}

func (e *Engine) flag(s models.ApprovalStatus) string {
	if s == models.StatusManualReview {
		return e.flagText
	}
	return ""
}

func (s *Summary) count(status models.ApprovalStatus) {
	switch status {
	case models.StatusNew:
		s.New++
	case models.StatusStillApproved:
		s.StillApproved++
	case models.StatusManualReview:
		s.ManualReview++
	case models.StatusTeachOutPhase:
		s.TeachOut++
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
