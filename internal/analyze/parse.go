package analyze

import (
	"strconv"
	"strings"

	"NewsDigest/internal/domain"
)

// This file is the grammar layer over the capability's free-text replies.
// Every routine tolerates arbitrary garbage: malformed lines are discarded,
// never propagated.

// Classification is one parsed classify-stage line.
type Classification struct {
	Category string
	Reason   string
}

// ParseClassifications parses reply lines of the form
//
//	<position>: <category> - <reason>
//
// Positions are 1-based indices into the classified batch. Lines with a
// non-integer or out-of-range position are discarded; when several lines
// reference the same position, the last one wins.
func ParseClassifications(reply string, batchSize int) map[int]Classification {
	out := make(map[int]Classification)

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		if line == "" {
			continue
		}

		head, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		pos, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil || pos < 1 || pos > batchSize {
			continue
		}

		category := strings.TrimSpace(rest)
		reason := ""
		if cat, why, ok := strings.Cut(category, " - "); ok {
			category = strings.TrimSpace(cat)
			reason = strings.TrimSpace(why)
		}
		if category == "" {
			continue
		}

		out[pos] = Classification{Category: category, Reason: reason}
	}

	return out
}

// SplitSummary splits a summarize/translate reply of the form
//
//	<summary> / <translation>
//
// into its two parts. ok is false unless both parts are non-empty.
func SplitSummary(reply string) (summary, translation string, ok bool) {
	reply = strings.TrimSpace(reply)
	first, second, found := strings.Cut(reply, " / ")
	if !found {
		return "", "", false
	}

	summary = strings.TrimSpace(strings.Trim(strings.TrimSpace(first), "[]"))
	translation = strings.TrimSpace(strings.Trim(strings.TrimSpace(second), "[]"))
	if summary == "" || translation == "" {
		return "", "", false
	}
	return summary, translation, true
}

// ParseSentimentKeywords parses a reply of the form
//
//	<sentiment> | <keyword>, <keyword>, ...
//
// leniently. Anything unusable degrades to a neutral sentiment with no
// keywords rather than an error.
func ParseSentimentKeywords(reply string) (sentiment string, keywords []string) {
	sentiment = domain.SentimentNeutral

	head, rest, found := strings.Cut(strings.TrimSpace(reply), "|")
	if !found {
		return sentiment, nil
	}

	if s := strings.TrimSpace(head); s != "" {
		sentiment = s
	}
	for _, kw := range strings.Split(rest, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return sentiment, keywords
}

const clusterHeaderMarker = "cluster"

// ParseClusters parses a clustering reply. A line beginning with the cluster
// header marker opens a new named group; subsequent lines whose leading
// token is an integer add that batch position to the group, until the next
// header or end of input. Positions outside 1..batchSize are ignored, and
// groups that end up empty are dropped.
func ParseClusters(reply string, batchSize int) []domain.Cluster {
	var clusters []domain.Cluster
	var current *domain.Cluster

	flush := func() {
		if current != nil && len(current.Positions) > 0 {
			current.ID = len(clusters) + 1
			clusters = append(clusters, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(strings.ToLower(line), clusterHeaderMarker) {
			flush()
			label := line
			if _, rest, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(rest) != "" {
				label = strings.TrimSpace(rest)
			}
			current = &domain.Cluster{Label: label}
			continue
		}

		if current == nil {
			continue
		}
		pos, ok := leadingPosition(line)
		if !ok || pos < 1 || pos > batchSize {
			continue
		}
		if !containsInt(current.Positions, pos) {
			current.Positions = append(current.Positions, pos)
		}
	}
	flush()

	return clusters
}

// leadingPosition extracts an integer prefix such as "3", "3.", "3:" or
// "- 3: title" from a cluster member line.
func leadingPosition(line string) (int, bool) {
	line = strings.TrimPrefix(line, "- ")
	line = strings.TrimPrefix(line, "* ")

	end := 0
	for end < len(line) && line[end] >= '0' && line[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	pos, err := strconv.Atoi(line[:end])
	if err != nil {
		return 0, false
	}
	return pos, true
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Truncate bounds a string to limit runes. The summarize-stage fallback and
// the body preview both use it, so "summary equals the truncated body" holds
// exactly when the capability reply is unusable.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
