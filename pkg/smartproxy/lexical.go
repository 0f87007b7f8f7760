// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package smartproxy

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/stacklok/toolgate/pkg/gateway"
)

// Lexical index field names. The index is volatile: it is fully rebuilt
// on every bind and never mutated in place.
const (
	fieldMethod     = "method"
	fieldDesc       = "description"
	fieldParamDescs = "parameterDescriptions"
	fieldToolID     = "toolId"
)

// lexicalHit is one ranked lexical result. Score is normalized by the
// top hit's raw score into (0, 1] so it is consumable by the shared
// dynamic-limit selector.
type lexicalHit struct {
	UniqueID string
	Score    float64
}

// buildLexicalIndex builds an in-memory fuzzy index over the bound tools.
func buildLexicalIndex(tools []gateway.BoundTool) (bleve.Index, error) {
	textField := bleve.NewTextFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt(fieldMethod, textField)
	docMapping.AddFieldMappingsAt(fieldDesc, textField)
	docMapping.AddFieldMappingsAt(fieldParamDescs, textField)
	docMapping.AddFieldMappingsAt(fieldToolID, textField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create lexical index: %w", err)
	}

	batch := index.NewBatch()
	for _, t := range tools {
		doc := map[string]any{
			fieldMethod:     t.OriginalName,
			fieldDesc:       t.Tool.Description,
			fieldParamDescs: parameterDescriptions(t.Tool),
			fieldToolID:     t.ServerName,
		}
		if err := batch.Index(t.UniqueID(), doc); err != nil {
			return nil, fmt.Errorf("failed to index tool %s: %w", t.UniqueID(), err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to build lexical index: %w", err)
	}

	return index, nil
}

// lexicalSearch runs a fuzzy, prefix-enabled OR query over the three
// indexed fields. The description field carries the configured boost.
func lexicalSearch(index bleve.Index, queryText string, fuzzy, descriptionBoost float64, size int) ([]lexicalHit, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" || size <= 0 {
		return nil, nil
	}

	fuzziness := fuzzinessFor(fuzzy)
	tokens := strings.Fields(strings.ToLower(queryText))

	searchFields := []string{fieldMethod, fieldDesc, fieldParamDescs}
	subQueries := make([]query.Query, 0, len(searchFields)*(1+len(tokens)))
	for _, field := range searchFields {
		boost := 1.0
		if field == fieldDesc {
			boost = descriptionBoost
		}

		mq := bleve.NewMatchQuery(queryText)
		mq.SetField(field)
		mq.SetFuzziness(fuzziness)
		mq.SetBoost(boost)
		subQueries = append(subQueries, mq)

		for _, token := range tokens {
			pq := bleve.NewPrefixQuery(token)
			pq.SetField(field)
			pq.SetBoost(boost)
			subQueries = append(subQueries, pq)
		}
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(subQueries...), size, 0, false)
	res, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	hits := make([]lexicalHit, 0, len(res.Hits))
	top := 0.0
	if len(res.Hits) > 0 {
		top = res.Hits[0].Score
	}
	for _, h := range res.Hits {
		score := h.Score
		if top > 0 {
			score = h.Score / top
		}
		hits = append(hits, lexicalHit{UniqueID: h.ID, Score: score})
	}
	return hits, nil
}

// fuzzinessFor maps the [0,1] fuzzy knob to an edit distance. Zero means
// exact matching; anything above 0.5 allows two edits.
func fuzzinessFor(fuzzy float64) int {
	switch {
	case fuzzy <= 0:
		return 0
	case fuzzy <= 0.5:
		return 1
	default:
		return 2
	}
}
