// Package kb provides the knowledge-base collaborator consumed by the
// retrieval stage.
package kb

import (
	"regexp"
	"sort"
	"strings"
)

// Article is one knowledge-base entry.
type Article struct {
	ID    string
	Title string
	Body  string
	Tags  []string
}

// Hit is a scored search result.
type Hit struct {
	Article Article
	Score   float64
	Snippet string
}

// Searcher finds articles relevant to a customer query.
type Searcher interface {
	Search(query string, limit int) ([]Hit, error)
}

//nolint:gochecknoglobals
var (
	tokenPattern = regexp.MustCompile(`[a-zA-Z0-9_-]+`)

	stopWords = map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true,
		"but": true, "in": true, "on": true, "at": true, "to": true,
		"for": true, "of": true, "with": true, "by": true, "from": true,
		"as": true, "is": true, "are": true, "was": true, "were": true,
		"be": true, "been": true, "being": true, "have": true, "has": true,
		"had": true, "do": true, "does": true, "did": true, "will": true,
		"would": true, "should": true, "could": true, "may": true, "might": true,
		"must": true, "can": true, "this": true, "that": true, "these": true,
		"those": true, "i": true, "you": true, "he": true, "she": true,
		"it": true, "we": true, "they": true, "what": true, "which": true,
		"who": true, "when": true, "where": true, "why": true, "how": true,
		"my": true, "me": true, "try": true, "tried": true,
	}
)

// ExtractKeyTerms tokenizes a query into lowercase search terms, dropping
// stop words and very short tokens.
func ExtractKeyTerms(query string) []string {
	tokens := tokenPattern.FindAllString(query, -1)

	seen := make(map[string]bool)
	var terms []string
	for _, token := range tokens {
		lower := strings.ToLower(token)
		if len(lower) < 3 || stopWords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		terms = append(terms, lower)
	}
	return terms
}

// MemorySearcher is an in-memory term-frequency searcher.
type MemorySearcher struct {
	articles []Article
}

// NewMemorySearcher creates a searcher over the given articles.
func NewMemorySearcher(articles []Article) *MemorySearcher {
	return &MemorySearcher{articles: articles}
}

// Search scores every article against the query terms. Title matches weigh
// more than body matches; tag matches more still.
func (s *MemorySearcher) Search(query string, limit int) ([]Hit, error) {
	terms := ExtractKeyTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	var hits []Hit
	for i := range s.articles {
		article := &s.articles[i]
		score := scoreArticle(article, terms)
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{
			Article: *article,
			Score:   score,
			Snippet: snippet(article.Body, terms),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func scoreArticle(article *Article, terms []string) float64 {
	title := strings.ToLower(article.Title)
	body := strings.ToLower(article.Body)

	tags := make(map[string]bool, len(article.Tags))
	for _, tag := range article.Tags {
		tags[strings.ToLower(tag)] = true
	}

	var score float64
	for _, term := range terms {
		if tags[term] {
			score += 3
		}
		if strings.Contains(title, term) {
			score += 2
		}
		score += float64(strings.Count(body, term))
	}
	return score
}

// snippet returns the first sentence containing any term, falling back to
// the opening of the body.
func snippet(body string, terms []string) string {
	sentences := strings.SplitAfter(body, ". ")
	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				return strings.TrimSpace(sentence)
			}
		}
	}

	const maxLen = 160
	if len(body) > maxLen {
		return strings.TrimSpace(body[:maxLen]) + "..."
	}
	return strings.TrimSpace(body)
}
