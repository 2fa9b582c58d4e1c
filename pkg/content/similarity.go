package content

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/alice21mota/oppia/pkg/apperr"
)

// Similarity constants.
const (
	SameTopicSimilarity    = 1.0
	DefaultTopicSimilarity = 0.5
	baseTopicSimilarity    = 0.1
)

// Categories are the exploration categories, in CSV order.
var Categories = []string{
	"Architecture", "Art", "Biology", "Business", "Chemistry", "Computing", "Economics",
	"Education", "Engineering", "Environment", "Geography", "Government", "Hobbies",
	"Languages", "Law", "Life Skills", "Mathematics", "Medicine", "Music", "Philosophy",
	"Physics", "Programming", "Psychology", "Puzzles", "Reading", "Religion", "Sport",
	"Statistics", "Welcome",
}

var relatedTopics = []struct {
	a, b  string
	value float64
}{
	{"Biology", "Chemistry", 0.6},
	{"Biology", "Medicine", 0.8},
	{"Business", "Economics", 0.8},
	{"Chemistry", "Physics", 0.6},
	{"Computing", "Programming", 0.9},
	{"Engineering", "Physics", 0.6},
	{"Government", "Law", 0.7},
	{"Mathematics", "Physics", 0.7},
	{"Mathematics", "Statistics", 0.8},
	{"Philosophy", "Religion", 0.6},
	{"Psychology", "Medicine", 0.4},
}

func defaultSimilarities() map[string]map[string]float64 {
	m := make(map[string]map[string]float64, len(Categories))
	for _, a := range Categories {
		m[a] = make(map[string]float64, len(Categories))
		for _, b := range Categories {
			m[a][b] = baseTopicSimilarity
		}
		m[a][a] = SameTopicSimilarity
	}
	for _, r := range relatedTopics {
		m[r.a][r.b] = r.value
		m[r.b][r.a] = r.value
	}
	return m
}

func (s *Service) similarities(ctx context.Context) (map[string]map[string]float64, error) {
	stored, err := getEntity[TopicSimilarities](ctx, s.store, KindTopicSimilarities, topicSimilaritiesDocKey)
	if apperr.IsNotFound(err) {
		return defaultSimilarities(), nil
	}
	if err != nil {
		return nil, err
	}
	return stored.Matrix, nil
}

// TopicSimilarity returns the similarity between two categories.
func (s *Service) TopicSimilarity(ctx context.Context, a, b string) (float64, error) {
	if a == b {
		return SameTopicSimilarity, nil
	}
	m, err := s.similarities(ctx)
	if err != nil {
		return 0, err
	}
	if v, ok := m[a][b]; ok {
		return v, nil
	}
	return DefaultTopicSimilarity, nil
}

// UploadTopicSimilarities merges a CSV similarity matrix into the stored
// one. The first row names the categories, the remaining rows hold a square
// symmetric matrix with ones on the diagonal.
func (s *Service) UploadTopicSimilarities(ctx context.Context, data string) error {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(data)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return apperr.InvalidInput("Invalid topic similarities CSV: %v", err)
	}
	if len(records) == 0 {
		return apperr.InvalidInput("Topic similarities data is empty.")
	}
	topics := records[0]
	rows := records[1:]
	if len(rows) != len(topics) {
		return apperr.InvalidInput("Length of topic similarities columns: %d does not match length of topic list: %d.", len(rows), len(topics))
	}
	for _, t := range topics {
		if !slices.Contains(Categories, t) {
			return apperr.InvalidInput("Topic %s not in list of known topics.", t)
		}
	}

	values := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(topics) {
			return apperr.InvalidInput("Length of topic similarities rows: %d does not match length of topic list: %d.", len(row), len(topics))
		}
		values[i] = make([]float64, len(row))
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return apperr.InvalidInput("Expected similarity to be a float, received %s", cell)
			}
			if v < 0 || v > 1 {
				return apperr.InvalidInput("Expected similarity to be between 0.0 and 1.0, received %s", cell)
			}
			values[i][j] = v
		}
	}
	for i := range values {
		if values[i][i] != SameTopicSimilarity {
			return apperr.InvalidInput("Expected similarity between %s and itself to be 1.0.", topics[i])
		}
		for j := range i {
			if values[i][j] != values[j][i] {
				return apperr.InvalidInput("Expected topic similarities to be symmetric.")
			}
		}
	}

	m, err := s.similarities(ctx)
	if err != nil {
		return err
	}
	for i, a := range topics {
		for j, b := range topics {
			m[a][b] = values[i][j]
		}
	}
	if err := putEntity(ctx, s.store, KindTopicSimilarities, topicSimilaritiesDocKey, TopicSimilarities{Matrix: m}); err != nil {
		return err
	}
	s.logger.Info("topic similarities updated", "topics", len(topics))
	return nil
}

// TopicSimilaritiesCSV renders the similarity matrix with a header row of
// every category.
func (s *Service) TopicSimilaritiesCSV(ctx context.Context) (string, error) {
	m, err := s.similarities(ctx)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Categories); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}
	for _, a := range Categories {
		row := make([]string, len(Categories))
		for j, b := range Categories {
			row[j] = formatSimilarity(m[a][b])
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}
	return buf.String(), nil
}

// formatSimilarity always keeps a decimal point, so 1 renders as 1.0.
func formatSimilarity(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
