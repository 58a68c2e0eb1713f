// Package diagnostics groups the failed jobs of a batch by their normalized failure reason.
package diagnostics

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

// Normalization regexes compiled once at package init.
var (
	reURL        = regexp.MustCompile(`https?://\S+`)
	reHexAddr    = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	reUUID       = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	reBracketNum = regexp.MustCompile(`\[\d+\]`)
	reParenNum   = regexp.MustCompile(`\(\d+\)`)
	reNumber     = regexp.MustCompile(`\b\d+\b`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// GroupFailures returns one group per (outcome, normalized reason) among jobs that
// ended failed or timed_out. Groups are sorted by Count DESC, then by the ordinal of
// their first job. Returns an empty slice, never nil.
func GroupFailures(jobs []models.TransformJob) []models.FailureGroup {
	groups := make(map[string]*models.FailureGroup)

	for _, job := range jobs {
		if job.Status != models.JobStatusFailed && job.Status != models.JobStatusTimedOut {
			continue
		}
		fp := Fingerprint(string(job.Status) + ":" + job.FailureReason)
		g, ok := groups[fp]
		if !ok {
			g = &models.FailureGroup{
				Fingerprint:  fp,
				Outcome:      job.Status,
				SampleReason: truncateString(job.FailureReason, 500),
				Effects:      []string{},
				AssetNames:   []string{},
			}
			groups[fp] = g
		}
		g.Count++
		g.JobOrdinals = append(g.JobOrdinals, job.Ordinal)
		g.Effects = appendUnique(g.Effects, job.Effect)
		g.AssetNames = appendUnique(g.AssetNames, job.AssetName)
	}

	out := make([]models.FailureGroup, 0, len(groups))
	for _, g := range groups {
		sort.Ints(g.JobOrdinals)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].JobOrdinals[0] < out[j].JobOrdinals[0]
	})
	return out
}

// Fingerprint computes a stable SHA-256 fingerprint for a failure reason.
func Fingerprint(reason string) string {
	hash := sha256.Sum256([]byte(NormalizeReason(reason)))
	return fmt.Sprintf("%x", hash)
}

// NormalizeReason strips the parts of a reason that vary between otherwise identical failures.
func NormalizeReason(reason string) string {
	reason = reURL.ReplaceAllString(reason, "URL")
	reason = reHexAddr.ReplaceAllString(reason, "0xADDR")
	reason = reUUID.ReplaceAllString(reason, "UUID")
	reason = reBracketNum.ReplaceAllString(reason, "[N]")
	reason = reParenNum.ReplaceAllString(reason, "(N)")
	reason = reNumber.ReplaceAllString(reason, "N")
	reason = reWhitespace.ReplaceAllString(reason, " ")
	reason = strings.ToLower(reason)
	reason = strings.TrimSpace(reason)
	return truncateString(reason, 500)
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
