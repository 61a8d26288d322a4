package services

import (
	"fmt"
	"strings"

	"github.com/fokamtech/skolink-backend/internal/models"
)

// Bot prompt and confirmation templates. Every function here is pure: typed
// parameters in, formatted string out. No I/O, no session state, so each
// rendering is deterministic and can be golden-tested.

// RenderHelp lists the commands the bot understands.
func RenderHelp() string {
	return `🏫 *Bienvenue sur SkoLink !*

Je suis l'assistant de votre école. Voici ce que je sais faire :

📝 *absence* - Signaler l'absence d'un enfant
📋 *mes absences* - Voir vos 5 derniers signalements
❓ *aide* - Afficher ce message

Envoyez une commande pour commencer !`
}

// RenderNotRegistered is the terminal reply for unknown senders.
func RenderNotRegistered() string {
	return `❌ Ce numéro n'est pas enregistré.

Demandez à l'école d'associer votre numéro WhatsApp à votre compte parent, puis réessayez.`
}

// RenderFallback is returned for unrecognized input outside any conversation.
func RenderFallback() string {
	return `🤔 Je n'ai pas compris votre message.

Tapez *aide* pour voir les commandes disponibles.`
}

// RenderNoChildren tells a guardian without linked students how to proceed.
func RenderNoChildren() string {
	return `❌ Aucun enfant n'est associé à votre compte.

Ajoutez vos enfants depuis l'application web avant de signaler une absence.`
}

// RenderStudentList presents the guardian's children as a numbered list.
func RenderStudentList(names []string) string {
	var sb strings.Builder
	sb.WriteString("📝 *Signalement d'absence*\n\nPour quel enfant ?\n\n")
	for i, name := range names {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, name))
	}
	sb.WriteString("\nRépondez avec le numéro correspondant.")
	return sb.String()
}

// RenderStudentSelectionError re-prompts after an invalid list choice.
func RenderStudentSelectionError(count int) string {
	return fmt.Sprintf("❌ Choix invalide. Répondez avec un numéro entre 1 et %d.", count)
}

// RenderDatePrompt asks for the absence date.
func RenderDatePrompt(studentName string) string {
	return fmt.Sprintf(`📅 Quelle est la date d'absence de %s ?

Répondez *aujourd'hui* ou une date au format JJ/MM/AAAA (ex: 15/01/2024).`, studentName)
}

// RenderDateError re-prompts after an unparseable date.
func RenderDateError() string {
	return `❌ Date invalide.

Répondez *aujourd'hui* ou une date au format JJ/MM/AAAA (ex: 15/01/2024).`
}

// RenderReasonPrompt asks for the absence reason.
func RenderReasonPrompt() string {
	return "💬 Quel est le motif de l'absence ?\n\nEx: Maladie, rendez-vous médical..."
}

// RenderJustificationPrompt asks for an optional attachment.
func RenderJustificationPrompt() string {
	return `📎 Avez-vous un justificatif (photo ou document) ?

Envoyez-le maintenant, ou répondez *non* pour continuer sans justificatif.`
}

// RenderConfirmation summarizes the collected report before saving.
func RenderConfirmation(studentName, date, reason string, hasJustification bool) string {
	justif := "aucun"
	if hasJustification {
		justif = "fourni"
	}
	return fmt.Sprintf(`📋 *Récapitulatif*

👦 Enfant : %s
📅 Date : %s
💬 Motif : %s
📎 Justificatif : %s

Confirmez-vous ce signalement ? (*oui* / *non*)`, studentName, date, reason, justif)
}

// RenderConfirmError re-prompts for a yes/no answer.
func RenderConfirmError() string {
	return "🤔 Répondez *oui* pour confirmer ou *non* pour annuler."
}

// RenderSuccess confirms the saved report.
func RenderSuccess(studentName, date string) string {
	return fmt.Sprintf(`✅ *Absence signalée !*

L'absence de %s le %s a été transmise à l'école. Vous serez notifié une fois le signalement traité.`, studentName, date)
}

// RenderCancelled confirms a cancelled conversation.
func RenderCancelled() string {
	return "❌ Signalement annulé. Tapez *absence* pour recommencer."
}

// RenderPersistenceError is the generic retry-later reply when saving fails.
func RenderPersistenceError() string {
	return "⚠️ Une erreur est survenue lors de l'enregistrement. Veuillez réessayer plus tard."
}

// RenderHistoryEmpty is returned when the guardian has no reported absences.
func RenderHistoryEmpty() string {
	return "📋 Vous n'avez encore signalé aucune absence.\n\nTapez *absence* pour en signaler une."
}

// RenderHistory lists recent absence reports with their status.
func RenderHistory(absences []*models.Absence, studentNames map[uint]string) string {
	var sb strings.Builder
	sb.WriteString("📋 *Vos derniers signalements*\n\n")
	for _, a := range absences {
		name := studentNames[a.StudentID]
		if name == "" {
			name = "Enfant"
		}
		sb.WriteString(fmt.Sprintf("• %s - %s - %s\n", name, a.Date, statusLabel(a.Status)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func statusLabel(status string) string {
	switch status {
	case models.AbsenceStatusPending:
		return "⏳ en attente"
	case models.AbsenceStatusApproved:
		return "✅ approuvée"
	case models.AbsenceStatusRejected:
		return "❌ refusée"
	default:
		return status
	}
}
