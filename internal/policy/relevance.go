package policy

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// KeywordJudge is the built-in heuristic for AI mode.
// Wide domains (short video, social) are lenient: related when the page mentions a
// topic keyword, unrelated only when the title looks like pure entertainment.
// Reference domains are always related. Everything else is unrelated.
type KeywordJudge struct {
	WideDomains          []string
	ReferenceDomains     []string
	EntertainmentDomains []string
	EntertainmentTitle   *regexp.Regexp
}

// NewKeywordJudge returns the heuristic with its default domain lists.
func NewKeywordJudge() *KeywordJudge {
	return &KeywordJudge{
		WideDomains:          []string{"youtube.com", "facebook.com", "tiktok.com"},
		ReferenceDomains:     []string{"stackoverflow.com", "aws.amazon.com"},
		EntertainmentDomains: []string{"youtube.com"},
		EntertainmentTitle:   regexp.MustCompile(`(?i)video game|music video|trailer`),
	}
}

// Judge implements domain.RelevanceJudge.
func (j *KeywordJudge) Judge(ctx context.Context, topic string, tab domain.Tab) (verdict domain.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = domain.VerdictRelated
		}
	}()

	keywords := domain.NormalizeTopicKeywords(topic)
	text := strings.ToLower(tab.Title + " " + tab.URL)

	if containsAny(tab.URL, j.WideDomains) {
		for _, k := range keywords {
			if strings.Contains(text, k) {
				return domain.VerdictRelated
			}
		}
		if containsAny(tab.URL, j.EntertainmentDomains) && j.EntertainmentTitle != nil &&
			j.EntertainmentTitle.MatchString(tab.Title) {
			return domain.VerdictUnrelated
		}
		return domain.VerdictRelated
	}
	if containsAny(tab.URL, j.ReferenceDomains) {
		return domain.VerdictRelated
	}
	return domain.VerdictUnrelated
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ClassifierJudge consults a ContentClassifier when the base judge says unrelated.
// A classifier failure is never grounds for warning; it falls back to related.
type ClassifierJudge struct {
	base       domain.RelevanceJudge
	classifier domain.ContentClassifier
	logger     *zap.Logger
}

// NewClassifierJudge wraps base. classifier may be nil, in which case base is used alone.
func NewClassifierJudge(base domain.RelevanceJudge, classifier domain.ContentClassifier, logger *zap.Logger) *ClassifierJudge {
	return &ClassifierJudge{
		base:       base,
		classifier: classifier,
		logger:     logger,
	}
}

// Judge implements domain.RelevanceJudge.
func (j *ClassifierJudge) Judge(ctx context.Context, topic string, tab domain.Tab) domain.Verdict {
	verdict := j.base.Judge(ctx, topic, tab)
	if verdict == domain.VerdictRelated || j.classifier == nil {
		return verdict
	}

	category, err := j.classifier.Classify(ctx, domain.PageInfo{URL: tab.URL, Title: tab.Title})
	if err != nil {
		j.logger.Debug("classification failed, treating page as related",
			zap.String("url", tab.URL),
			zap.Error(err))
		return domain.VerdictRelated
	}
	if category == domain.CategoryWork {
		return domain.VerdictRelated
	}
	return domain.VerdictUnrelated
}

// Ensure judges implement domain.RelevanceJudge.
var (
	_ domain.RelevanceJudge = (*KeywordJudge)(nil)
	_ domain.RelevanceJudge = (*ClassifierJudge)(nil)
)
