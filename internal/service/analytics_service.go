package service

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/repository"
	apperrors "github.com/spec-kit/support-chat/pkg/util"
)

const summaryCacheKey = "analytics:summary"

var wordSplitter = regexp.MustCompile(`\W+`)

// keywordStopWords are common words excluded from the keyword ranking.
var keywordStopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "you": {}, "with": {}, "that": {},
	"this": {}, "have": {}, "from": {}, "your": {}, "are": {}, "was": {},
	"will": {}, "can": {}, "please": {}, "thank": {}, "thanks": {},
}

// AgentChatCount is one row of the per-agent workload breakdown.
type AgentChatCount struct {
	AgentID string `json:"agentId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Count   int64  `json:"count"`
}

// SentimentDayBucket counts message sentiment for one UTC calendar day.
type SentimentDayBucket struct {
	Date     string `json:"date"`
	Positive int64  `json:"positive"`
	Neutral  int64  `json:"neutral"`
	Negative int64  `json:"negative"`
}

// KeywordCount is one ranked keyword.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}

// AnalyticsSummary is the full dashboard payload.
type AnalyticsSummary struct {
	ChatsPerAgent                   []AgentChatCount     `json:"chatsPerAgent"`
	AverageFirstResponseTimeMinutes *float64             `json:"averageFirstResponseTimeMinutes"`
	SentimentByDay                  []SentimentDayBucket `json:"sentimentByDay"`
	TopKeywords                     []KeywordCount       `json:"topKeywords"`
}

// AnalyticsService computes the dashboard summary over the message and
// conversation stores. Results are cached in Redis for a short window; the
// cache is best effort and an unreachable Redis only costs a recompute.
type AnalyticsService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	cache         *redis.Client
	cacheTTL      time.Duration
	recentWindow  int
	logger        *zap.Logger
}

// NewAnalyticsService wires the analytics service. cache may be nil.
func NewAnalyticsService(conversations repository.ConversationRepository, messages repository.MessageRepository, users repository.UserRepository, cache *redis.Client, cacheTTL time.Duration, recentWindow int, logger *zap.Logger) *AnalyticsService {
	if recentWindow <= 0 {
		recentWindow = 500
	}
	return &AnalyticsService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		cache:         cache,
		cacheTTL:      cacheTTL,
		recentWindow:  recentWindow,
		logger:        logger,
	}
}

// Summary returns the dashboard aggregation, served from cache when fresh.
func (s *AnalyticsService) Summary(ctx context.Context) (*AnalyticsSummary, error) {
	if cached := s.readCache(ctx); cached != nil {
		return cached, nil
	}

	summary := &AnalyticsSummary{
		ChatsPerAgent:  []AgentChatCount{},
		SentimentByDay: []SentimentDayBucket{},
		TopKeywords:    []KeywordCount{},
	}

	chats, err := s.chatsPerAgent(ctx)
	if err != nil {
		return nil, apperrors.NewAggregationFailure(err)
	}
	summary.ChatsPerAgent = chats

	stats, err := s.messages.ListThreadStats(ctx)
	if err != nil {
		return nil, apperrors.NewAggregationFailure(err)
	}
	summary.AverageFirstResponseTimeMinutes = averageFirstResponseMinutes(stats)
	summary.SentimentByDay = sentimentByDay(stats)

	texts, err := s.messages.ListRecentTexts(ctx, s.recentWindow)
	if err != nil {
		return nil, apperrors.NewAggregationFailure(err)
	}
	summary.TopKeywords = topKeywords(texts, 10)

	s.writeCache(ctx, summary)
	return summary, nil
}

func (s *AnalyticsService) chatsPerAgent(ctx context.Context) ([]AgentChatCount, error) {
	rows, err := s.conversations.AgentLoad(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []AgentChatCount{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.AgentID)
	}
	directory := map[string]domain.UserRef{}
	refs, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		directory[ref.ID] = ref
	}

	out := make([]AgentChatCount, 0, len(rows))
	for _, row := range rows {
		ref := directory[row.AgentID]
		name := ref.Name
		if name == "" {
			name = "Unknown"
		}
		out = append(out, AgentChatCount{AgentID: row.AgentID, Name: name, Email: ref.Email, Count: row.Count})
	}
	return out, nil
}

// averageFirstResponseMinutes averages, over conversations that have both a
// customer message and a later staff reply, the gap between the first
// customer message and the first staff message after it. Nil when no
// conversation qualifies.
func averageFirstResponseMinutes(stats []repository.ThreadStat) *float64 {
	type thread struct {
		firstCustomer time.Time
		hasCustomer   bool
		firstReply    time.Time
		hasReply      bool
	}
	threads := map[string]*thread{}
	order := []string{}

	for _, st := range stats {
		t, ok := threads[st.ConversationID]
		if !ok {
			t = &thread{}
			threads[st.ConversationID] = t
			order = append(order, st.ConversationID)
		}
		if st.SenderRole == domain.RoleCustomer {
			if !t.hasCustomer {
				t.firstCustomer = st.CreatedAt
				t.hasCustomer = true
			}
			continue
		}
		if t.hasCustomer && !t.hasReply && !st.CreatedAt.Before(t.firstCustomer) {
			t.firstReply = st.CreatedAt
			t.hasReply = true
		}
	}

	var totalMinutes float64
	var counted int
	for _, id := range order {
		t := threads[id]
		if t.hasCustomer && t.hasReply {
			totalMinutes += t.firstReply.Sub(t.firstCustomer).Minutes()
			counted++
		}
	}
	if counted == 0 {
		return nil
	}
	avg := totalMinutes / float64(counted)
	return &avg
}

// sentimentByDay buckets messages by UTC calendar day, ascending.
func sentimentByDay(stats []repository.ThreadStat) []SentimentDayBucket {
	buckets := map[string]*SentimentDayBucket{}
	for _, st := range stats {
		day := st.CreatedAt.UTC().Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &SentimentDayBucket{Date: day}
			buckets[day] = b
		}
		switch st.Sentiment {
		case domain.SentimentPositive:
			b.Positive++
		case domain.SentimentNegative:
			b.Negative++
		default:
			b.Neutral++
		}
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]SentimentDayBucket, 0, len(days))
	for _, day := range days {
		out = append(out, *buckets[day])
	}
	return out
}

// topKeywords ranks words longer than three characters, minus stop words,
// across the given texts. Ties keep first-seen order.
func topKeywords(texts []string, limit int) []KeywordCount {
	counts := map[string]int64{}
	order := []string{}

	for _, text := range texts {
		for _, word := range wordSplitter.Split(strings.ToLower(text), -1) {
			if len(word) <= 3 {
				continue
			}
			if _, stop := keywordStopWords[word]; stop {
				continue
			}
			if _, seen := counts[word]; !seen {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	// Stable sort by count descending over first-seen order.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	out := make([]KeywordCount, 0, len(order))
	for _, word := range order {
		out = append(out, KeywordCount{Keyword: word, Count: counts[word]})
	}
	return out
}

func (s *AnalyticsService) readCache(ctx context.Context) *AnalyticsSummary {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil
	}
	raw, err := s.cache.Get(ctx, summaryCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("analytics cache read failed", zap.Error(err))
		}
		return nil
	}
	var summary AnalyticsSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil
	}
	return &summary
}

func (s *AnalyticsService) writeCache(ctx context.Context, summary *AnalyticsSummary) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, summaryCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("analytics cache write failed", zap.Error(err))
	}
}
