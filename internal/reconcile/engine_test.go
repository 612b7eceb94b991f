package reconcile

import (
	"io"
	"log/slog"
	"testing"

	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	return New(rules, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func program(name string, obj models.EducationalObjective) models.ReconciledRecord {
	return models.ReconciledRecord{ProgramRecord: models.ProgramRecord{
		Name:                 name,
		EducationalObjective: obj,
		Accredited:           true,
		LengthUnit:           models.LengthUnitSemester,
	}}
}

func find(t *testing.T, records []models.ReconciledRecord, name string) models.ReconciledRecord {
	t.Helper()
	for _, r := range records {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("record %q not found in %+v", name, records)
	return models.ReconciledRecord{}
}

func TestReconcile_NewProgram(t *testing.T) {
	e := newTestEngine(t)
	out, sum := e.Reconcile(
		[]models.ReconciledRecord{program("Data Science, M.S.", models.ObjectiveMasters)},
		nil,
	)
	r := find(t, out, "Data Science, M.S.")
	if r.ApprovalStatus != models.StatusNew || r.EffectiveDate != "Fall 2025" {
		t.Errorf("got status=%v date=%q, want New/Fall 2025", r.ApprovalStatus, r.EffectiveDate)
	}
	if r.Flag != "" || r.CatalogName != "Graduate Catalog" {
		t.Errorf("unexpected flag/catalog: %q %q", r.Flag, r.CatalogName)
	}
	if sum.New != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestReconcile_RemovedProgramKeepsEffectiveDate(t *testing.T) {
	e := newTestEngine(t)
	prev := program("Philosophy, M.A.", models.ObjectiveMasters)
	prev.EffectiveDate = "Spring 2019"
	prev.ApprovalStatus = models.StatusStillApproved
	prev.CatalogName = "Graduate Catalog 2023"
	prev.CreditHours = models.Hours(30)

	last := []models.ReconciledRecord{prev}
	out, sum := e.Reconcile(nil, last)

	r := find(t, out, "Philosophy, M.A.")
	if r.ApprovalStatus != models.StatusManualReview {
		t.Errorf("status = %v, want Manual Review", r.ApprovalStatus)
	}
	if r.EffectiveDate != "Spring 2019" || r.CatalogName != "Graduate Catalog 2023" || *r.CreditHours != 30 {
		t.Errorf("removed row not carried verbatim: %+v", r)
	}
	if r.Flag != "Manual Review" {
		t.Errorf("flag = %q", r.Flag)
	}
	if last[0].ApprovalStatus != models.StatusStillApproved {
		t.Error("input record was mutated")
	}
	if sum.Removed != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestReconcile_ContinuingPrograms(t *testing.T) {
	e := newTestEngine(t)

	stillPrev := program("biology, ph.d.", models.ObjectiveDoctorate)
	stillPrev.EffectiveDate = "Fall 2010"

	reviewPrev := program("Nursing, M.S.N.", models.ObjectiveMasters)
	reviewPrev.EffectiveDate = "Fall 2012"
	reviewPrev.Comments = "Program in teach out through 2026"

	teachPrev := program("Geology, M.S.", models.ObjectiveMasters)
	teachPrev.EffectiveDate = "Fall 2001"
	teachPrev.ApprovalStatus = models.StatusTeachOutPhase
	teachPrev.CatalogName = "Graduate Catalog 2019"

	datedNow := program("History B.A.", models.ObjectiveBachelors)
	datedNow.EffectiveDate = "Fall 2024"
	datedPrev := program("HISTORY B.A.", models.ObjectiveBachelors)
	datedPrev.EffectiveDate = "Fall 2015"

	this := []models.ReconciledRecord{
		program("Biology, Ph.D.", models.ObjectiveDoctorate),
		program("Nursing, M.S.N.", models.ObjectiveMasters),
		program("Geology, M.S.", models.ObjectiveMasters),
		datedNow,
	}
	out, sum := e.Reconcile(this, []models.ReconciledRecord{stillPrev, reviewPrev, teachPrev, datedPrev})

	if len(out) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(out))
	}

	bio := find(t, out, "Biology, Ph.D.")
	if bio.ApprovalStatus != models.StatusStillApproved || bio.EffectiveDate != "Fall 2010" || bio.Flag != "" {
		t.Errorf("biology: %+v", bio)
	}

	nursing := find(t, out, "Nursing, MSN.")
	if nursing.ApprovalStatus != models.StatusManualReview || nursing.EffectiveDate != "Fall 2012" || nursing.Flag != "Manual Review" {
		t.Errorf("nursing: %+v", nursing)
	}

	geo := find(t, out, "Geology, M.S.")
	if geo.ApprovalStatus != models.StatusTeachOutPhase || geo.CatalogName != "Graduate Catalog 2019" {
		t.Errorf("geology: %+v", geo)
	}

	hist := find(t, out, "History B.A.")
	if hist.ApprovalStatus != models.StatusStillApproved || hist.EffectiveDate != "Fall 2024" || hist.CatalogName != "Undergraduate Catalog" {
		t.Errorf("history: %+v", hist)
	}

	if sum.StillApproved != 2 || sum.ManualReview != 1 || sum.TeachOut != 1 || sum.New != 0 || sum.Removed != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestReconcile_Invariants(t *testing.T) {
	e := newTestEngine(t)
	prev := program("Old Program, M.A.", models.ObjectiveMasters)
	prev.EffectiveDate = "Fall 2000"
	out, _ := e.Reconcile(
		[]models.ReconciledRecord{
			program("Brand New, M.S.", models.ObjectiveMasters),
			program("Accounting Graduate Certificate", models.ObjectiveGradCert),
			program("Entrepreneurship Certificate", models.ObjectiveCertificate),
		},
		[]models.ReconciledRecord{prev},
	)
	for _, r := range out {
		if r.ApprovalStatus == models.StatusNew && r.EffectiveDate != "Fall 2025" {
			t.Errorf("%s: new program effective date %q", r.Name, r.EffectiveDate)
		}
		if (r.ApprovalStatus == models.StatusManualReview) != (r.Flag != "") {
			t.Errorf("%s: flag %q inconsistent with status %v", r.Name, r.Flag, r.ApprovalStatus)
		}
	}
	if got := find(t, out, "Accounting Graduate Certificate").CatalogName; got != "Graduate Catalog" {
		t.Errorf("grad cert catalog = %q", got)
	}
	if got := find(t, out, "Entrepreneurship Certificate").CatalogName; got != "Undergraduate Catalog" {
		t.Errorf("certificate catalog = %q", got)
	}
}

func TestFromPrograms(t *testing.T) {
	in := []models.ProgramRecord{{Name: "A, M.S."}, {Name: "B, M.A."}}
	out := FromPrograms(in)
	if len(out) != 2 || out[1].Name != "B, M.A." || out[0].EffectiveDate != "" {
		t.Errorf("FromPrograms() = %+v", out)
	}
}

func TestSummaryCounts(t *testing.T) {
	s := Summary{New: 1, StillApproved: 2, ManualReview: 3, TeachOut: 4, Removed: 5}
	if got := SummaryFromCounts(s.Counts()); got != s {
		t.Errorf("SummaryFromCounts(Counts()) = %+v, want %+v", got, s)
	}
	if got := SummaryFromCounts(nil); got != (Summary{}) {
		t.Errorf("SummaryFromCounts(nil) = %+v", got)
	}
}
