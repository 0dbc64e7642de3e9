package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/nlq-engine/nlq-engine/pkg/models"
)

// fuzzyMapThreshold is the weighted confidence a question token must
// reach against an indexed term to count as a match. Gating on the
// weighted score rather than raw similarity keeps near-miss synonym
// matches ("work" against "worker") from binding ambient words to the
// schema and dragging pure document questions into hybrid plans.
const fuzzyMapThreshold = 0.85

// stopwords are question-scaffolding tokens that never map to schema
// elements and never survive as free text.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "by": true, "with": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"do": true, "does": true, "did": true, "have": true, "has": true,
	"we": true, "i": true, "you": true, "they": true, "it": true,
	"me": true, "my": true, "our": true, "their": true, "us": true,
	"what": true, "which": true, "who": true, "whose": true,
	"show": true, "list": true, "give": true, "get": true, "find": true,
	"all": true, "any": true, "please": true, "and": true, "or": true,
	"than": true, "from": true, "per": true, "each": true, "every": true,
}

var (
	numberPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)
	datePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	wordPattern   = regexp.MustCompile(`[A-Za-z0-9_'.\-]+`)
)

// indexedTerm is one searchable entry of the mapper index: a normalized
// term bound to a table or column. Synonym-derived terms carry a lower
// weight than real identifier names.
type indexedTerm struct {
	term   string
	table  string
	column string // empty for a table binding
	weight float64
}

// EntityMapper resolves natural-language tokens to catalog elements. The
// index is derived once per catalog and is read-only afterwards, so it is
// safe for concurrent use.
type EntityMapper struct {
	catalog *models.SchemaCatalog
	terms   []indexedTerm
}

// NewEntityMapper builds the mapper index for a catalog. Indexed terms
// are the table and column names themselves plus the synonym patterns of
// every hint rule a table or column matched during discovery.
func NewEntityMapper(catalog *models.SchemaCatalog, rules []HintRule) *EntityMapper {
	patternsByHint := make(map[models.Hint][]string, len(rules))
	for _, rule := range rules {
		patternsByHint[rule.Hint] = append(patternsByHint[rule.Hint], rule.Patterns...)
	}

	m := &EntityMapper{catalog: catalog}
	for _, table := range catalog.Tables {
		m.addTerm(NormalizeName(table.Name), table.Name, "", 1.0)
		for _, hint := range table.Hints {
			for _, pattern := range patternsByHint[hint] {
				m.addTerm(NormalizeName(pattern), table.Name, "", 0.9)
			}
		}
		for _, col := range table.Columns {
			m.addTerm(NormalizeName(col.Name), table.Name, col.Name, 1.0)
			for _, hint := range col.Hints {
				for _, pattern := range patternsByHint[hint] {
					m.addTerm(NormalizeName(pattern), table.Name, col.Name, 0.9)
				}
			}
		}
	}
	return m
}

func (m *EntityMapper) addTerm(term, table, column string, weight float64) {
	if term == "" {
		return
	}
	m.terms = append(m.terms, indexedTerm{term: term, table: table, column: column, weight: weight})
}

// MapResult holds the mapper output: entities ordered highest confidence
// first, and the tokens that bound to nothing. Unmatched tokens are never
// silently dropped; document search acts on them.
type MapResult struct {
	Entities []models.MappedEntity
	FreeText []string
}

// bound pairs a mapped entity with its word position in the question,
// used for proximity-based literal attachment.
type bound struct {
	entity models.MappedEntity
	pos    int
}

// Map resolves a question against the catalog index.
func (m *EntityMapper) Map(text string) MapResult {
	words := wordPattern.FindAllString(text, -1)

	var (
		matched   []bound
		literals  []bound
		freeText  []string
		usedTable = make(map[string]bool)
	)

	for i := 0; i < len(words); i++ {
		word := strings.Trim(words[i], "'.")
		lower := strings.ToLower(word)
		if word == "" || stopwords[lower] {
			continue
		}

		if numberPattern.MatchString(word) || datePattern.MatchString(word) {
			literals = append(literals, bound{
				entity: models.MappedEntity{Token: word, Kind: models.EntityValue, Value: word, Confidence: 1.0},
				pos:    i,
			})
			continue
		}

		// Bigrams first so "join date" wins over "join" + "date".
		if i+1 < len(words) {
			next := strings.ToLower(strings.Trim(words[i+1], "'."))
			if next != "" && !stopwords[next] {
				bigram := lower + " " + next
				if e, ok := m.bestMatch(bigram, word+" "+words[i+1], usedTable); ok {
					matched = append(matched, bound{entity: e, pos: i})
					usedTable[e.Table] = true
					i++
					continue
				}
			}
		}

		if e, ok := m.bestMatch(lower, word, usedTable); ok {
			matched = append(matched, bound{entity: e, pos: i})
			usedTable[e.Table] = true
			continue
		}

		// A token may still name a value the sampler saw, e.g.
		// "Engineering" appearing in a department column.
		if e, ok := m.sampleValueMatch(word); ok {
			matched = append(matched, bound{entity: e, pos: i})
			usedTable[e.Table] = true
			continue
		}

		freeText = append(freeText, word)
	}

	// Attach extracted literals to the nearest matched column of a
	// compatible logical type.
	for _, lit := range literals {
		lit.entity = m.attachLiteral(lit.entity, lit.pos, matched)
		matched = append(matched, lit)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].entity.Confidence > matched[j].entity.Confidence
	})

	entities := make([]models.MappedEntity, 0, len(matched))
	for _, b := range matched {
		entities = append(entities, b.entity)
	}
	return MapResult{Entities: entities, FreeText: freeText}
}

// bestMatch finds the best index entry for a token. Ties break by higher
// confidence, then by preferring a table already matched elsewhere in the
// question, then by the lexically shortest term.
func (m *EntityMapper) bestMatch(normalizedToken, original string, usedTable map[string]bool) (models.MappedEntity, bool) {
	token := NormalizeName(normalizedToken)
	if token == "" {
		return models.MappedEntity{}, false
	}

	var (
		best     indexedTerm
		bestConf float64
		found    bool
	)
	for _, t := range m.terms {
		var conf float64
		if t.term == token {
			conf = t.weight
		} else if sim := smetrics.JaroWinkler(token, t.term, 0.7, 4); t.weight*sim >= fuzzyMapThreshold {
			conf = t.weight * sim
		} else {
			continue
		}

		switch {
		case !found, conf > bestConf:
		case conf == bestConf && usedTable[t.table] && !usedTable[best.table]:
		case conf == bestConf && usedTable[t.table] == usedTable[best.table] && len(t.term) < len(best.term):
		default:
			continue
		}
		best, bestConf, found = t, conf, true
	}
	if !found {
		return models.MappedEntity{}, false
	}

	kind := models.EntityTable
	if best.column != "" {
		kind = models.EntityColumn
	}
	return models.MappedEntity{
		Token:      original,
		Kind:       kind,
		Table:      best.table,
		Column:     best.column,
		Confidence: bestConf,
	}, true
}

// sampleValueMatch scans discovered sample rows for a token that appears
// verbatim as a stored value, binding it as a filter value candidate.
// Columns are walked in declaration order so a value sampled in more
// than one column always binds to the same one.
func (m *EntityMapper) sampleValueMatch(word string) (models.MappedEntity, bool) {
	for _, table := range m.catalog.Tables {
		for _, col := range table.Columns {
			for _, row := range table.SampleRows {
				s, ok := row[col.Name].(string)
				if !ok || !strings.EqualFold(s, word) {
					continue
				}
				return models.MappedEntity{
					Token:      word,
					Kind:       models.EntityValue,
					Table:      table.Name,
					Column:     col.Name,
					Value:      s,
					Confidence: 0.9,
				}, true
			}
		}
	}
	return models.MappedEntity{}, false
}

// attachLiteral associates a numeric or date literal with the nearest
// matched column of a compatible logical type.
func (m *EntityMapper) attachLiteral(lit models.MappedEntity, pos int, matched []bound) models.MappedEntity {
	wantDate := datePattern.MatchString(lit.Token)

	bestDist := -1
	for _, b := range matched {
		if b.entity.Kind != models.EntityColumn {
			continue
		}
		table := m.catalog.Table(b.entity.Table)
		if table == nil {
			continue
		}
		col := table.Column(b.entity.Column)
		if col == nil {
			continue
		}
		compatible := (wantDate && col.Logical == models.LogicalDate) ||
			(!wantDate && (col.Logical == models.LogicalNumeric || col.Logical == models.LogicalIdentifier))
		if !compatible {
			continue
		}
		dist := pos - b.pos
		if dist < 0 {
			dist = -dist
		}
		if bestDist == -1 || dist < bestDist {
			bestDist = dist
			lit.Table = b.entity.Table
			lit.Column = b.entity.Column
		}
	}
	return lit
}
