package domain

// Intent is the medical topic a query is routed on.
type Intent string

const (
	IntentGeneral        Intent = "general"
	IntentDosage         Intent = "dosage"
	IntentInteractions   Intent = "interactions"
	IntentSideEffects    Intent = "side_effects"
	IntentIdentification Intent = "identification"
	IntentDocument       Intent = "document"
)

// TextIntents are the intents reachable from a plain text query.
// Identification and document require an image and are only selected
// through the identify flow.
func TextIntents() []Intent {
	return []Intent{IntentGeneral, IntentDosage, IntentInteractions, IntentSideEffects}
}
