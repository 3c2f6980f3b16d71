package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/pkg/embedding"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/textnorm"
)

type assistantCatalog interface {
	Snapshot(ctx context.Context, program models.Program) (*models.CourseTable, error)
	FolderLink(ctx context.Context, program models.Program, code string) (models.FolderLinkResult, error)
}

type semanticIndex interface {
	Documents(ctx context.Context) ([]models.SemanticDocument, error)
}

type assistantMetrics interface {
	RecordAssistantAnswer(path models.AssistantPath, degraded bool)
}

// AssistantConfig tunes semantic retrieval.
type AssistantConfig struct {
	TopK          int
	ExcerptLength int
}

// aggregateTemplate answers a fixed question from the program table.
type aggregateTemplate struct {
	name      string
	phrases   []string
	aggregate func(*models.CourseTable) float64
	render    func(models.Program, float64) string
}

// Templates are tried in order, so more specific phrasings come first:
// "inactive courses" contains "active courses". Status phrases always name
// courses, so "principios activos" stays a semantic question.
var aggregateTemplates = normalizeTemplates([]aggregateTemplate{
	{
		name:      "average_credits",
		phrases:   []string{"promedio de créditos", "créditos promedio", "promedio de creditos", "average credits", "average credit", "mean credits"},
		aggregate: averageCredits,
		render: func(p models.Program, v float64) string {
			return fmt.Sprintf("El promedio de créditos por curso en %s es %s.", p, formatNumber(v))
		},
	},
	{
		name:      "total_credits",
		phrases:   []string{"total de créditos", "créditos totales", "suma de créditos", "cuántos créditos", "total credits", "sum of credits", "how many credits"},
		aggregate: totalCredits,
		render: func(p models.Program, v float64) string {
			return fmt.Sprintf("El total de créditos en %s es %s.", p, formatNumber(v))
		},
	},
	{
		name:      "first_year_count",
		phrases:   []string{"primer año", "año 1", "first year", "first-year", "year 1"},
		aggregate: firstYearCount,
		render: func(p models.Program, v float64) string {
			return fmt.Sprintf("%s tiene %s cursos de primer año.", p, formatNumber(v))
		},
	},
	{
		name:      "inactive_count",
		phrases:   []string{"cursos inactivos", "cursos están inactivos", "inactive courses", "courses are inactive"},
		aggregate: statusCount(models.StatusInactive),
		render: func(p models.Program, v float64) string {
			return fmt.Sprintf("%s tiene %s cursos inactivos.", p, formatNumber(v))
		},
	},
	{
		name:      "active_count",
		phrases:   []string{"cursos activos", "cursos están activos", "active courses", "courses are active"},
		aggregate: statusCount(models.StatusActive),
		render: func(p models.Program, v float64) string {
			return fmt.Sprintf("%s tiene %s cursos activos.", p, formatNumber(v))
		},
	},
	{
		name:      "course_count",
		phrases:   []string{"cuántos cursos", "número de cursos", "cantidad de cursos", "total de cursos", "how many courses", "number of courses", "course count"},
		aggregate: func(t *models.CourseTable) float64 { return float64(t.Len()) },
		render: func(p models.Program, v float64) string {
			return fmt.Sprintf("%s tiene %s cursos en el catálogo.", p, formatNumber(v))
		},
	},
})

const (
	msgEmbeddingFailed = "no se pudo interpretar la pregunta en este momento"
	msgIndexFailed     = "el índice semántico no está disponible"
	msgNoData          = "no hay datos del catálogo para responder"
	msgNoHits          = "no se encontraron cursos relacionados con la pregunta"
)

// AssistantService answers free-text questions with fixed aggregations and
// falls back to semantic retrieval over the precomputed index.
type AssistantService struct {
	catalog   assistantCatalog
	embedder  embedding.Embedder
	index     semanticIndex
	audit     auditRecorder
	metrics   assistantMetrics
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AssistantConfig
}

// NewAssistantService constructs the assistant.
func NewAssistantService(catalog assistantCatalog, embedder embedding.Embedder, index semanticIndex, audit auditRecorder, metrics assistantMetrics, validate *validator.Validate, logger *zap.Logger, cfg AssistantConfig) *AssistantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if embedder == nil {
		embedder = embedding.Disabled{}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ExcerptLength <= 0 {
		cfg.ExcerptLength = 400
	}
	return &AssistantService{
		catalog:   catalog,
		embedder:  embedder,
		index:     index,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Ask composes an answer for the query. Retrieval problems never fail the
// call: they are reported on the answer's Error field. Exactly one audit
// event is recorded per composed answer.
func (s *AssistantService) Ask(ctx context.Context, session models.SessionState, req models.AssistantQuery) (*models.AssistantAnswer, []string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assistant query")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "query is required")
	}
	normalized := textnorm.Normalize(query)

	answer := &models.AssistantAnswer{
		Query:   query,
		Program: programMentioned(normalized, session.Program),
		States:  []models.AssistantState{models.AssistantIdle, models.AssistantQueryReceived},
	}

	var action string
	if tpl, ok := matchTemplate(normalized); ok {
		answer.States = append(answer.States, models.AssistantTemplateMatched)
		s.answerTabular(ctx, answer, tpl)
		action = models.AssistantTabularAction(query)
	} else {
		answer.States = append(answer.States, models.AssistantTemplateUnmatched)
		s.answerSemantic(ctx, answer)
		action = models.AssistantSemanticAction(query)
	}
	answer.States = append(answer.States, models.AssistantAnswerComposed)

	if s.metrics != nil {
		s.metrics.RecordAssistantAnswer(answer.Path, answer.Error != "")
	}
	return answer, recordAudit(ctx, s.audit, session.Actor(), action), nil
}

func (s *AssistantService) answerTabular(ctx context.Context, answer *models.AssistantAnswer, tpl aggregateTemplate) {
	answer.Path = models.AssistantPathTabular
	answer.Template = tpl.name

	table, err := s.catalog.Snapshot(ctx, answer.Program)
	if err != nil || table.Empty() {
		answer.Error = msgNoData
		answer.Text = msgNoData
		return
	}
	value := tpl.aggregate(table)
	answer.Value = &value
	answer.Text = tpl.render(answer.Program, value)
}

func (s *AssistantService) answerSemantic(ctx context.Context, answer *models.AssistantAnswer) {
	answer.Path = models.AssistantPathSemantic
	answer.Results = []models.SemanticHit{}

	vector, err := s.embedder.Embed(ctx, answer.Query)
	if err != nil {
		s.logger.Warn("assistant embedding failed", zap.Error(err))
		answer.Error = msgEmbeddingFailed
		answer.Text = msgEmbeddingFailed
		return
	}
	answer.States = append(answer.States, models.AssistantEmbedded)

	if s.index == nil {
		answer.Error = msgIndexFailed
		answer.Text = msgIndexFailed
		return
	}
	docs, err := s.index.Documents(ctx)
	if err != nil {
		s.logger.Warn("semantic index unavailable", zap.Error(err))
		answer.Error = msgIndexFailed
		answer.Text = msgIndexFailed
		return
	}

	hits := rankDocuments(vector, docs, s.cfg.TopK)
	answer.States = append(answer.States, models.AssistantRetrieved)
	if len(hits) == 0 {
		answer.Text = msgNoHits
		return
	}

	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		folder, err := s.catalog.FolderLink(ctx, h.doc.Program, h.doc.Code)
		if err != nil {
			s.logger.Debug("folder link lookup failed", zap.String("code", h.doc.Code), zap.Error(err))
		}
		answer.Results = append(answer.Results, models.SemanticHit{
			Program: h.doc.Program,
			Code:    h.doc.Code,
			Title:   h.doc.Title,
			Excerpt: excerpt(h.doc.Text, s.cfg.ExcerptLength),
			Score:   h.score,
			Folder:  folder,
		})
		lines = append(lines, fmt.Sprintf("%s (%s): %s", h.doc.Code, h.doc.Program, h.doc.Title))
	}
	answer.Text = "Cursos relacionados:\n" + strings.Join(lines, "\n")
}

type scoredDocument struct {
	doc   models.SemanticDocument
	score float64
}

// rankDocuments returns the k most similar documents, best first. Ties keep
// index order.
func rankDocuments(vector []float32, docs []models.SemanticDocument, k int) []scoredDocument {
	scored := make([]scoredDocument, 0, len(docs))
	for _, d := range docs {
		if len(d.Embedding) != len(vector) {
			continue
		}
		scored = append(scored, scoredDocument{doc: d, score: embedding.Cosine(vector, d.Embedding)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func matchTemplate(normalized string) (aggregateTemplate, bool) {
	for _, tpl := range aggregateTemplates {
		if textnorm.ContainsAny(normalized, tpl.phrases...) {
			return tpl, true
		}
	}
	return aggregateTemplate{}, false
}

func normalizeTemplates(templates []aggregateTemplate) []aggregateTemplate {
	for i := range templates {
		for j, p := range templates[i].phrases {
			templates[i].phrases[j] = textnorm.Normalize(p)
		}
	}
	return templates
}

// programMentioned returns the program named in the query, else fallback.
func programMentioned(normalized string, fallback models.Program) models.Program {
	for _, word := range strings.FieldsFunc(normalized, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if p, err := models.ParseProgram(word); err == nil {
			return p
		}
	}
	if fallback.Valid() {
		return fallback
	}
	return models.ProgramPharmD
}

func intOf(v models.FlexInt) (int, bool) {
	if v.Valid {
		return v.Int, true
	}
	if n, err := models.ParseInt(v.Text); err == nil {
		return n, true
	}
	return 0, false
}

func totalCredits(t *models.CourseTable) float64 {
	total := 0
	for _, c := range t.Courses {
		if n, ok := intOf(c.Credits); ok {
			total += n
		}
	}
	return float64(total)
}

func averageCredits(t *models.CourseTable) float64 {
	total, count := 0, 0
	for _, c := range t.Courses {
		if n, ok := intOf(c.Credits); ok {
			total += n
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func firstYearCount(t *models.CourseTable) float64 {
	count := 0
	for _, c := range t.Courses {
		if n, ok := intOf(c.Year); ok && n == 1 {
			count++
		}
	}
	return float64(count)
}

func statusCount(status models.CourseStatus) func(*models.CourseTable) float64 {
	return func(t *models.CourseTable) float64 {
		count := 0
		for _, c := range t.Courses {
			if c.Status == status {
				count++
			}
		}
		return float64(count)
	}
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// excerpt cuts text to at most n runes.
func excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n]))
}
