package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
)

var errEmptyDocument = errors.New("empty document")

// ReadabilityMining mines questions from the main article text that
// readability isolates, for pages where navigation text drowns the body.
type ReadabilityMining struct{}

// NewReadabilityMining returns the readability fallback strategy.
func NewReadabilityMining() *ReadabilityMining { return &ReadabilityMining{} }

// Name implements Strategy.
func (r *ReadabilityMining) Name() string { return domain.StrategyReadability }

// Extract implements Strategy.
func (r *ReadabilityMining) Extract(doc dom.Handle) ([]domain.RawQuestion, error) {
	documentHTML := strings.TrimSpace(doc.HTML())
	if documentHTML == "" {
		return nil, errEmptyDocument
	}

	pageURL, err := url.Parse(doc.URL())
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(documentHTML), pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	body := article.Content
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	// Reparse the article markup so block boundaries survive as lines.
	articleDoc, err := dom.NewDocumentFromString(doc.URL(), body)
	if err != nil {
		return mineText(article.TextContent, doc.URL()), nil
	}
	return mineText(articleDoc.Text(), doc.URL()), nil
}
