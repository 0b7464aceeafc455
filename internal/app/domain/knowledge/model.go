// Package knowledge holds the indexing preview types returned before a
// dataset is indexed.
package knowledge

// PreviewDetail is one segment of a document preview.
type PreviewDetail struct {
	Content     string   `json:"content"`
	ChildChunks []string `json:"child_chunks,omitempty"`
}

// QAPreviewDetail is one generated question/answer pair.
type QAPreviewDetail struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// IndexingEstimate is the cost preview of an indexing run.
type IndexingEstimate struct {
	TotalSegments int               `json:"total_segments"`
	Preview       []PreviewDetail   `json:"preview"`
	QAPreview     []QAPreviewDetail `json:"qa_preview,omitempty"`
	TotalPrice    float64           `json:"total_price"`
	Currency      string            `json:"currency"`
}

// NewEstimate builds an estimate whose segment count covers the full
// document even when only a sample is previewed.
func NewEstimate(totalSegments int, preview []PreviewDetail, qa []QAPreviewDetail, totalPrice float64, currency string) IndexingEstimate {
	if preview == nil {
		preview = []PreviewDetail{}
	}
	if totalSegments < len(preview) {
		totalSegments = len(preview)
	}
	if currency == "" {
		currency = "USD"
	}
	return IndexingEstimate{
		TotalSegments: totalSegments,
		Preview:       preview,
		QAPreview:     qa,
		TotalPrice:    totalPrice,
		Currency:      currency,
	}
}
