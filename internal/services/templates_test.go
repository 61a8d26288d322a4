package services

import (
	"strings"
	"testing"

	"github.com/fokamtech/skolink-backend/internal/models"
)

func TestRenderStudentList(t *testing.T) {
	out := RenderStudentList([]string{"Léo Kamga", "Awa Kamga"})

	if !strings.Contains(out, "1. Léo Kamga") {
		t.Errorf("expected first entry '1. Léo Kamga' in:\n%s", out)
	}
	if !strings.Contains(out, "2. Awa Kamga") {
		t.Errorf("expected second entry '2. Awa Kamga' in:\n%s", out)
	}
}

func TestRenderConfirmation(t *testing.T) {
	out := RenderConfirmation("Léo", "15/01/2024", "Maladie", false)

	for _, want := range []string{"Léo", "15/01/2024", "Maladie", "aucun", "oui", "non"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in confirmation:\n%s", want, out)
		}
	}

	withJustif := RenderConfirmation("Léo", "15/01/2024", "Maladie", true)
	if !strings.Contains(withJustif, "fourni") {
		t.Errorf("expected 'fourni' when a justification is attached:\n%s", withJustif)
	}
}

func TestRenderersAreDeterministic(t *testing.T) {
	if RenderHelp() != RenderHelp() {
		t.Error("RenderHelp is not deterministic")
	}
	a := RenderConfirmation("Léo", "15/01/2024", "Maladie", true)
	b := RenderConfirmation("Léo", "15/01/2024", "Maladie", true)
	if a != b {
		t.Error("RenderConfirmation is not deterministic")
	}
	if RenderStudentSelectionError(3) != RenderStudentSelectionError(3) {
		t.Error("RenderStudentSelectionError is not deterministic")
	}
}

func TestRenderHistory(t *testing.T) {
	absences := []*models.Absence{
		{StudentID: 1, Date: "2024-01-15", Status: models.AbsenceStatusPending},
		{StudentID: 2, Date: "2024-01-10", Status: models.AbsenceStatusApproved},
	}
	names := map[uint]string{1: "Léo", 2: "Awa"}

	out := RenderHistory(absences, names)

	for _, want := range []string{"Léo", "2024-01-15", "en attente", "Awa", "approuvée"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in history:\n%s", want, out)
		}
	}
}

func TestRenderHistoryUnknownStudent(t *testing.T) {
	absences := []*models.Absence{
		{StudentID: 9, Date: "2024-01-15", Status: models.AbsenceStatusPending},
	}

	out := RenderHistory(absences, map[uint]string{})
	if !strings.Contains(out, "Enfant") {
		t.Errorf("expected placeholder name for unknown student in:\n%s", out)
	}
}
