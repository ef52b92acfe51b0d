package openai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/catalogix/prodsearch/internal/domain"
	"github.com/catalogix/prodsearch/internal/domain/search/filter"
)

// analyzerSystemPrompt instructs the model to split a natural language query
// into semantic search terms and structured metadata filters.
const analyzerSystemPrompt = `You are a query analyzer for a furniture product database. Extract semantic search terms and metadata filters from natural language queries and return the result as JSON.

FILTERABLE FIELDS:
- product_code (string): Unique product identifier
- base_price (float): Price in USD
- categories (list): List of category names
- height_value, width_value, depth_value, weight_value, volume_value (float): Product dimensions

CATEGORY KEYWORDS (map user terms to these exact names):
- Benches and Ottomans
- Cafe and Cafeteria Seating
- Classroom Seating
- Conference and Management Seating
- Dining Cafeteria
- Education
- Guest Seating
- Healthcare
- Heavy Duty and 24HR Office Seating
- Lounge Seating
- Mesh Seating
- Pedestal Seating
- Stacking and Nesting Chairs
- Stools
- Tandem Seating
- Wood Frame Seating
- Work and Task Seating
- Workplace

FILTER OPERATORS:
- Numeric: {"$lte": X}, {"$gte": X}, {"$eq": X}, or {"$gte": X, "$lte": Y} for ranges
- String (categories): Single string or list of strings for multiple categories

OUTPUT FORMAT (JSON):
{
  "search_query": "core product attributes for semantic search",
  "filters": {"field": {"$op": value}} or {"field": "string"} or {"field": ["string1", "string2"]}
}

EXAMPLES:

Query: "guest seating"
{"search_query": "seating", "filters": {"categories": ["Guest Seating"]}}

Query: "workplace chair under $500"
{"search_query": "chair", "filters": {"categories": ["Workplace"], "base_price": {"$lte": 500}}}

Query: "chair between $1100 and $1400"
{"search_query": "chair", "filters": {"base_price": {"$gte": 1100, "$lte": 1400}}}

Query: "healthcare chair over 40 inches"
{"search_query": "chair", "filters": {"categories": ["Healthcare"], "height_value": {"$gte": 40}}}

Query: "comfortable chair"
{"search_query": "comfortable chair", "filters": {}}

CRITICAL RULES:
1. Extract product type/material/style as search_query (remove category keywords from search)
2. "under/below" maps to $lte, "over/above" to $gte, "between/from...to" to both
3. Category keywords always become a list filter, even for a single category
4. Series names should stay in search_query for semantic matching, NOT as filters
5. Return valid JSON with "search_query" and "filters" keys`

// Analyzer extracts structured filters from natural language queries via a
// chat model in JSON mode.
type Analyzer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// AnalyzerConfig holds the query analyzer settings.
type AnalyzerConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewAnalyzer creates an LLM-backed query analyzer.
func NewAnalyzer(cfg *AnalyzerConfig) *Analyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Analyzer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Analyze runs the query through the chat model and parses the extracted
// search terms and filters. Any failure is wrapped with
// domain.ErrAnalyzerUnavailable so callers can degrade to the raw query.
func (a *Analyzer) Analyze(ctx context.Context, userQuery string) (domain.QueryAnalysis, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analyzerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userQuery},
		},
	})
	if err != nil {
		return domain.QueryAnalysis{}, fmt.Errorf("chat completion: %v: %w", err, domain.ErrAnalyzerUnavailable)
	}
	if len(resp.Choices) == 0 {
		return domain.QueryAnalysis{}, fmt.Errorf("empty completion response: %w", domain.ErrAnalyzerUnavailable)
	}

	var parsed struct {
		SearchQuery string                     `json:"search_query"`
		Filters     map[string]json.RawMessage `json:"filters"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return domain.QueryAnalysis{}, fmt.Errorf("parse analysis: %v: %w", err, domain.ErrAnalyzerUnavailable)
	}
	if parsed.SearchQuery == "" {
		parsed.SearchQuery = userQuery
	}

	expr, err := parseFilters(parsed.Filters)
	if err != nil {
		return domain.QueryAnalysis{}, fmt.Errorf("parse filters: %v: %w", err, domain.ErrAnalyzerUnavailable)
	}

	a.logger.Debug("query analyzed",
		zap.String("search_query", parsed.SearchQuery),
		zap.Int("filter_conditions", len(expr.Conditions())))

	return domain.QueryAnalysis{CleanQuery: parsed.SearchQuery, Filters: expr}, nil
}

// filterableFields are the payload keys conditions may target, the same set
// the system prompt advertises. The model occasionally hallucinates other
// fields; a condition on a key the payload never carries would match nothing,
// so those are dropped instead.
var filterableFields = map[string]struct{}{
	"product_code": {},
	"base_price":   {},
	"categories":   {},
	"height_value": {},
	"width_value":  {},
	"depth_value":  {},
	"weight_value": {},
	"volume_value": {},
}

// parseFilters turns the model's loose JSON filter object into a validated
// expression. Malformed entries, unknown fields, and unknown operators are
// skipped rather than failing the whole analysis.
func parseFilters(raw map[string]json.RawMessage) (filter.Expression, error) {
	var conditions []filter.Condition
	for key, value := range raw {
		cond, ok := parseCondition(key, value)
		if ok {
			conditions = append(conditions, cond)
		}
	}
	return filter.NewExpression(conditions)
}

func parseCondition(key string, value json.RawMessage) (filter.Condition, bool) {
	if _, ok := filterableFields[key]; !ok {
		return filter.Condition{}, false
	}

	var str string
	if json.Unmarshal(value, &str) == nil {
		return stringCondition(key, str)
	}

	var list []string
	if json.Unmarshal(value, &list) == nil {
		c, err := filter.NewAnyOf(key, list)
		return c, err == nil
	}

	var num float64
	if json.Unmarshal(value, &num) == nil {
		return numericEquals(key, num)
	}

	var ops map[string]float64
	if json.Unmarshal(value, &ops) == nil {
		return operatorCondition(key, ops)
	}

	return filter.Condition{}, false
}

// stringCondition keeps the original shape: categories is an array field and
// matches via set membership even for a single value.
func stringCondition(key, value string) (filter.Condition, bool) {
	if key == "categories" {
		c, err := filter.NewAnyOf(key, []string{value})
		return c, err == nil
	}
	c, err := filter.NewMatch(key, value)
	return c, err == nil
}

func numericEquals(key string, v float64) (filter.Condition, bool) {
	r, err := filter.NewRangeBounds(nil, &v, nil, &v)
	if err != nil {
		return filter.Condition{}, false
	}
	c, err := filter.NewRange(key, r)
	return c, err == nil
}

func operatorCondition(key string, ops map[string]float64) (filter.Condition, bool) {
	if eq, ok := ops["$eq"]; ok {
		return numericEquals(key, eq)
	}

	var gt, gte, lt, lte *float64
	for op, v := range ops {
		v := v
		switch op {
		case "$gt":
			gt = &v
		case "$gte":
			gte = &v
		case "$lt":
			lt = &v
		case "$lte":
			lte = &v
		}
	}
	r, err := filter.NewRangeBounds(gt, gte, lt, lte)
	if err != nil {
		return filter.Condition{}, false
	}
	c, err := filter.NewRange(key, r)
	return c, err == nil
}
