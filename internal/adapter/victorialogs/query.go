package victorialogs

import (
	"fmt"
	"sort"
	"strings"

	"inquest/internal/models"
)

// BuildSamplesQuery constructs a LogsQL query selecting error-level log
// samples for a subject within the window. Selectors are exact-match
// field filters; LogsQL joins filters with spaces (implicit AND).
func BuildSamplesQuery(subject string, selectors map[string]string, tr models.TimeRange, limit int) string {
	filters := baseFilters(subject, selectors, tr)
	query := strings.Join(filters, " ")
	if limit > 0 {
		query = fmt.Sprintf("%s | limit %d", query, limit)
	}
	return query
}

// BuildSignatureCountsQuery constructs a LogsQL query aggregating
// distinct error signatures by count over the window.
func BuildSignatureCountsQuery(subject string, selectors map[string]string, tr models.TimeRange, topK int) string {
	filters := baseFilters(subject, selectors, tr)
	base := strings.Join(filters, " ")
	return fmt.Sprintf("%s | stats by (error.type) count() hits | sort by (hits) desc | limit %d", base, topK)
}

// baseFilters builds the shared filter prefix: subject selector, any
// configured stream selectors (sorted for reproducible queries), and the
// absolute time range filter that prevents full history scans.
func baseFilters(subject string, selectors map[string]string, tr models.TimeRange) []string {
	filters := []string{fmt.Sprintf(`service:"%s"`, subject)}

	keys := make([]string, 0, len(selectors))
	for k := range selectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		filters = append(filters, fmt.Sprintf(`%s:"%s"`, k, selectors[k]))
	}

	filters = append(filters, fmt.Sprintf("_time:[%s, %s]",
		tr.Start.UTC().Format("2006-01-02T15:04:05Z"),
		tr.End.UTC().Format("2006-01-02T15:04:05Z")))
	return filters
}
