// Package related implements navigation and similarity helpers over an
// already-resolved, date-sorted post list. Everything here is a pure
// function; the lists are tens to low hundreds of posts, so linear
// scans are fine.
package related

import (
	"sort"
	"strings"

	"github.com/narkins/contentd/internal/models"
)

// DefaultLimit is the number of related posts returned when the caller
// does not ask for a specific count.
const DefaultLimit = 3

// Adjacent returns the chronological neighbors of slug in the given
// newest-first list: Previous is the older post, Next the newer one.
// Either side is nil at the ends; both are nil when the slug is not in
// the list.
func Adjacent(posts []models.Post, slug string) models.Adjacent {
	idx := -1
	for i, p := range posts {
		if p.Slug == slug {
			idx = i
			break
		}
	}
	if idx == -1 {
		return models.Adjacent{}
	}

	var adj models.Adjacent
	if idx < len(posts)-1 {
		adj.Previous = posts[idx+1].Ref()
	}
	if idx > 0 {
		adj.Next = posts[idx-1].Ref()
	}
	return adj
}

// Posts scores every candidate against current and returns the top
// limit matches, most similar first. The target itself is always
// excluded. Ties prefer the more recent post. The ranking is a
// deterministic overlap count, chosen for predictability.
func Posts(current models.Post, all []models.Post, limit int) []models.Post {
	if limit <= 0 {
		limit = DefaultLimit
	}

	type scored struct {
		post  models.Post
		score int
	}

	var candidates []scored
	for _, p := range all {
		if p.Slug == current.Slug {
			continue
		}
		candidates = append(candidates, scored{post: p, score: similarity(current, p)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].post.ParsedDate().After(candidates[j].post.ParsedDate())
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]models.Post, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, c.post)
	}
	return result
}

// similarity weights keyword overlap highest, then title words, then
// excerpt words.
func similarity(a, b models.Post) int {
	score := 0
	score += overlap(keywords(a), keywords(b)) * 3
	score += overlap(words(a.Title), words(b.Title)) * 2
	score += overlap(words(a.Excerpt), words(b.Excerpt))
	return score
}

func overlap(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, w := range b {
		set[w] = true
	}
	count := 0
	for _, w := range a {
		if set[w] {
			count++
		}
	}
	return count
}

// domainKeywords are recognized in titles even when the keywords field
// does not list them.
var domainKeywords = []string{
	"bahria town", "karachi", "lahore", "islamabad", "apartment",
	"property", "investment", "housing", "real estate", "dha",
	"gulshan", "construction", "development", "financing", "fbr",
	"rda", "sbca", "proptech",
}

func keywords(p models.Post) []string {
	seen := make(map[string]bool)
	var out []string

	for _, k := range strings.Split(strings.ToLower(p.Keywords), ",") {
		k = strings.TrimSpace(k)
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}

	title := strings.ToLower(p.Title)
	for _, k := range domainKeywords {
		if strings.Contains(title, k) && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}

	return out
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"as": true, "is": true, "was": true, "are": true, "were": true,
	"been": true, "be": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true,
	"can": true, "this": true, "that": true, "these": true,
	"those": true, "what": true, "how": true, "why": true,
	"when": true, "where": true, "which": true, "who": true,
	"your": true, "you": true, "we": true, "our": true,
}

// words extracts significant words: lowercased, alphanumeric, longer
// than three characters and not a stop word.
func words(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, text)

	var out []string
	for _, w := range strings.Fields(cleaned) {
		if len(w) > 3 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}
