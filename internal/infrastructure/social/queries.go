package social

import (
	"fmt"
	"strings"
)

// DefaultGenericQueries run every cycle regardless of tracked entities.
var DefaultGenericQueries = []string{
	"TGE token generation event -is:retweet lang:en",
	"crypto token launch -is:retweet lang:en",
	"airdrop announcement -is:retweet lang:en",
	"token sale ICO IDO -is:retweet lang:en",
}

// QueryPlan bounds the entity × phrase cross product.
type QueryPlan struct {
	Accounts    []string
	Entities    []string
	Phrases     []string
	MaxEntities int
	MaxPhrases  int
	Generic     []string
}

// Queries expands the plan: one query per account, then the capped entity ×
// phrase product, then the generic queries. Duplicates are dropped.
func (p QueryPlan) Queries() []string {
	out := make([]string, 0)
	seen := map[string]struct{}{}
	add := func(q string) {
		if _, ok := seen[q]; ok {
			return
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}

	for _, account := range p.Accounts {
		handle := strings.TrimPrefix(strings.TrimSpace(account), "@")
		if handle == "" {
			continue
		}
		add(fmt.Sprintf("from:%s -is:retweet -is:reply lang:en", handle))
	}

	for _, entity := range head(p.Entities, p.MaxEntities) {
		for _, phrase := range head(p.Phrases, p.MaxPhrases) {
			add(fmt.Sprintf("%q %s -is:retweet lang:en", entity, phrase))
		}
	}

	for _, q := range p.Generic {
		if q = strings.TrimSpace(q); q != "" {
			add(q)
		}
	}
	return out
}

func head(values []string, n int) []string {
	clean := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			clean = append(clean, v)
		}
	}
	if n > 0 && len(clean) > n {
		return clean[:n]
	}
	return clean
}
