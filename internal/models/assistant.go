package models

// AssistantPath tells which branch composed an answer.
type AssistantPath string

const (
	AssistantPathTabular  AssistantPath = "tabular"
	AssistantPathSemantic AssistantPath = "semantic"
)

// AssistantState is a step of the assistant exchange.
type AssistantState string

const (
	AssistantIdle              AssistantState = "idle"
	AssistantQueryReceived     AssistantState = "query_received"
	AssistantTemplateMatched   AssistantState = "template_matched"
	AssistantTemplateUnmatched AssistantState = "template_unmatched"
	AssistantEmbedded          AssistantState = "embedded"
	AssistantRetrieved         AssistantState = "retrieved"
	AssistantAnswerComposed    AssistantState = "answer_composed"
)

// AssistantQuery is a free-text question about the active program.
type AssistantQuery struct {
	Query string `json:"query" validate:"required,max=500"`
}

// SemanticHit is one retrieved course excerpt.
type SemanticHit struct {
	Program Program          `json:"program"`
	Code    string           `json:"code"`
	Title   string           `json:"title"`
	Excerpt string           `json:"excerpt"`
	Score   float64          `json:"score"`
	Folder  FolderLinkResult `json:"folder"`
}

// AssistantAnswer is the composed reply. Error carries a user-facing message
// when retrieval degraded; the answer itself is still returned.
type AssistantAnswer struct {
	Query    string           `json:"query"`
	Program  Program          `json:"program"`
	Path     AssistantPath    `json:"path"`
	Template string           `json:"template,omitempty"`
	Value    *float64         `json:"value,omitempty"`
	Text     string           `json:"text"`
	Results  []SemanticHit    `json:"results,omitempty"`
	Error    string           `json:"error,omitempty"`
	States   []AssistantState `json:"states"`
}
