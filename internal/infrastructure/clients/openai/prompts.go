package openai

import (
	"fmt"
	"strings"

	"github.com/meditrace/ccam-assist/internal/domain/providers"
)

const suggestionSystemPrompt = `Tu es un expert du codage CCAM français. À partir du contexte clinique fourni,
propose jusqu'à 3 codes CCAM classés par pertinence. Réponds UNIQUEMENT avec un objet JSON de la forme :
{
  "suggestions": [
    {
      "code": string (code CCAM, 7 caractères),
      "libelle": string,
      "modificateurs": string[],
      "score_confiance": number (0-100),
      "explication": string,
      "incompatibilites": string[]
    }
  ],
  "score_confiance_global": number (0-100),
  "explication_globale": string,
  "questions_clarification": string[],
  "alertes": string[]
}
Si le contexte est insuffisant, baisse le score global et pose des questions de clarification.
N'invente jamais de code : en cas de doute, signale-le dans les alertes.`

const anomalySystemPrompt = `Tu es un expert du codage CCAM français chargé du contrôle qualité. Analyse l'acte
fourni et signale les anomalies (incohérence durée/acte, modificateurs suspects, description incompatible
avec le type d'acte). Réponds UNIQUEMENT avec un objet JSON de la forme :
{
  "alertes": string[],
  "score_risque": number (0-100),
  "explication": string
}`

func systemPromptFor(task providers.CompletionTask) string {
	if task == providers.TaskAnomalyDetection {
		return anomalySystemPrompt
	}
	return suggestionSystemPrompt
}

func buildUserPrompt(req providers.CompletionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Type d'acte : %s\n", req.TypeActe)
	fmt.Fprintf(&b, "Description clinique : %s\n", req.DescriptionClinique)
	if req.MaterielUtilise != "" {
		fmt.Fprintf(&b, "Matériel utilisé : %s\n", req.MaterielUtilise)
	}
	if req.DureeActe > 0 {
		fmt.Fprintf(&b, "Durée : %d minutes\n", req.DureeActe)
	}
	if len(req.Modificateurs) > 0 {
		fmt.Fprintf(&b, "Modificateurs : %s\n", strings.Join(req.Modificateurs, ", "))
	}
	if req.Etablissement != "" {
		fmt.Fprintf(&b, "Établissement : %s\n", req.Etablissement)
	}
	if req.Service != "" {
		fmt.Fprintf(&b, "Service : %s\n", req.Service)
	}
	if len(req.CandidateCodes) > 0 {
		b.WriteString("Codes candidats du référentiel :\n")
		for _, c := range req.CandidateCodes {
			fmt.Fprintf(&b, "- %s : %s\n", c.Code, c.Libelle)
		}
	}
	return b.String()
}
