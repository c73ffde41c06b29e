package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/cache"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/rs/zerolog/log"
)

const (
	leaderboardMinAttempts   = 3
	DefaultLeaderboardLimit  = 50
	MaxLeaderboardLimit      = 100
	positionWindow           = 2
	notOnLeaderboardMessage  = "Complete at least 3 tests to appear on the leaderboard"
	anonymousLeaderboardName = "Anonymous"
)

type LeaderboardQuery struct {
	Limit  int
	Page   int
	Filter repository.LeaderboardFilter
}

type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, viewerID uint, q LeaderboardQuery) (*dto.LeaderboardResponse, error)
	GetUserPosition(ctx context.Context, userID uint, filter repository.LeaderboardFilter) (*dto.UserPositionResponse, error)
	Filters(ctx context.Context) (*dto.LeaderboardFilterOptions, error)
	Stats(ctx context.Context) (*dto.LeaderboardStats, error)
}

// rankedUser is one eligible user in ranking order. It is what the ranking
// cache stores, so the name is kept unredacted. RawAverage is the unrounded
// sort key; AverageScore is what gets displayed.
type rankedUser struct {
	UserID         uint    `json:"user_id"`
	Name           string  `json:"name"`
	Year           int     `json:"year"`
	Branch         string  `json:"branch"`
	TotalTests     int     `json:"total_tests"`
	RawAverage     float64 `json:"raw_average"`
	AverageScore   float64 `json:"average_score"`
	TotalTime      int64   `json:"total_time"`
	TotalTimeHours float64 `json:"total_time_hours"`
}

type leaderboardService struct {
	leaderboardRepo repository.LeaderboardRepository
	attemptRepo     repository.TestAttemptRepository
	rankings        cache.RankingCache
}

func NewLeaderboardService(
	leaderboardRepo repository.LeaderboardRepository,
	attemptRepo repository.TestAttemptRepository,
	rankings cache.RankingCache,
) LeaderboardService {
	return &leaderboardService{
		leaderboardRepo: leaderboardRepo,
		attemptRepo:     attemptRepo,
		rankings:        rankings,
	}
}

func (s *leaderboardService) GetLeaderboard(ctx context.Context, viewerID uint, q LeaderboardQuery) (*dto.LeaderboardResponse, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	limit = min(limit, MaxLeaderboardLimit)
	page := max(q.Page, 1)

	ranked, err := s.ranking(ctx, q.Filter)
	if err != nil {
		return nil, err
	}

	total := len(ranked)
	offset := (page - 1) * limit
	entries := []dto.LeaderboardEntry{}
	if offset < total {
		end := min(offset+limit, total)
		for i, u := range ranked[offset:end] {
			entries = append(entries, leaderboardEntry(u, offset+i+1, viewerID))
		}
	}

	totalPages := (total + limit - 1) / limit
	return &dto.LeaderboardResponse{
		Leaderboard: entries,
		Pagination: dto.Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalCount:  total,
			HasNext:     page < totalPages,
			HasPrev:     page > 1,
			PerPage:     limit,
		},
		Filters: dto.LeaderboardFilters{
			Company: q.Filter.Company,
			Year:    q.Filter.Year,
			Branch:  q.Filter.Branch,
		},
	}, nil
}

func (s *leaderboardService) GetUserPosition(ctx context.Context, userID uint, filter repository.LeaderboardFilter) (*dto.UserPositionResponse, error) {
	ranked, err := s.ranking(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.UserPositionResponse{
		NearbyCompetitors: []dto.LeaderboardEntry{},
		TotalParticipants: len(ranked),
	}
	idx := -1
	for i := range ranked {
		if ranked[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		resp.Message = notOnLeaderboardMessage
		return resp, nil
	}

	position := idx + 1
	own := leaderboardEntry(ranked[idx], position, userID)
	resp.UserPosition = &position
	resp.UserEntry = &own

	start := max(idx-positionWindow, 0)
	end := min(idx+positionWindow+1, len(ranked))
	for i := start; i < end; i++ {
		resp.NearbyCompetitors = append(resp.NearbyCompetitors, leaderboardEntry(ranked[i], i+1, userID))
	}
	return resp, nil
}

func (s *leaderboardService) Filters(ctx context.Context) (*dto.LeaderboardFilterOptions, error) {
	companies, err := s.leaderboardRepo.DistinctCompanies(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to load companies", err)
	}
	years, err := s.leaderboardRepo.DistinctYears(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to load years", err)
	}
	branches, err := s.leaderboardRepo.DistinctBranches(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to load branches", err)
	}
	return &dto.LeaderboardFilterOptions{
		Companies: nonNil(companies),
		Years:     nonNil(years),
		Branches:  nonNil(branches),
	}, nil
}

func (s *leaderboardService) Stats(ctx context.Context) (*dto.LeaderboardStats, error) {
	participants, err := s.leaderboardRepo.AggregateByUser(ctx, repository.LeaderboardFilter{}, 0)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to aggregate attempts", err)
	}
	score, questions, err := s.attemptRepo.SumScores(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to sum scores", err)
	}
	best, err := s.attemptRepo.MaxPercentage(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to load highest score", err)
	}
	ranked, err := s.ranking(ctx, repository.LeaderboardFilter{})
	if err != nil {
		return nil, err
	}

	stats := &dto.LeaderboardStats{
		TotalParticipants: len(participants),
		HighestScore:      round2(best),
	}
	for _, p := range participants {
		stats.TotalTestsTaken += p.TotalTests
	}
	if questions > 0 {
		stats.PlatformAverage = round2(score / float64(questions) * 100)
	}
	if len(ranked) > 0 {
		stats.TopPerformer = RedactName(ranked[0].Name)
	}
	return stats, nil
}

// ranking returns every eligible user for the filter in final order, served
// from the ranking cache when possible.
func (s *leaderboardService) ranking(ctx context.Context, filter repository.LeaderboardFilter) ([]rankedUser, error) {
	key := rankingKey(filter)
	var ranked []rankedUser
	slot, hit, err := s.rankings.Get(ctx, key, &ranked)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Leaderboard cache read failed")
	}
	if hit {
		return ranked, nil
	}

	rows, err := s.leaderboardRepo.AggregateByUser(ctx, filter, leaderboardMinAttempts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to aggregate leaderboard")
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to build leaderboard", err)
	}
	ranked = rankUsers(rows)

	// the slot is bound to the generation seen before aggregating, so a
	// submission landing in between leaves this write unreachable
	if slot != "" {
		if err := s.rankings.Set(ctx, slot, ranked); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Leaderboard cache write failed")
		}
	}
	return ranked, nil
}

// rankUsers orders by average score, then more tests, then less total time.
// User id is the last key so equal rows keep a stable order across pages.
func rankUsers(rows []repository.UserAggregate) []rankedUser {
	ranked := make([]rankedUser, 0, len(rows))
	for _, r := range rows {
		avg := 0.0
		if r.TotalQuestions > 0 {
			avg = r.TotalScore / float64(r.TotalQuestions) * 100
		}
		ranked = append(ranked, rankedUser{
			UserID:         r.UserID,
			Name:           r.Name,
			Year:           r.Year,
			Branch:         r.Branch,
			TotalTests:     int(r.TotalTests),
			RawAverage:     avg,
			AverageScore:   round2(avg),
			TotalTime:      r.TotalTime,
			TotalTimeHours: round1(float64(r.TotalTime) / 3600),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.RawAverage != b.RawAverage {
			return a.RawAverage > b.RawAverage
		}
		if a.TotalTests != b.TotalTests {
			return a.TotalTests > b.TotalTests
		}
		if a.TotalTime != b.TotalTime {
			return a.TotalTime < b.TotalTime
		}
		return a.UserID < b.UserID
	})
	return ranked
}

func leaderboardEntry(u rankedUser, rank int, viewerID uint) dto.LeaderboardEntry {
	e := dto.LeaderboardEntry{
		Rank:           rank,
		Name:           RedactName(u.Name),
		Year:           u.Year,
		Branch:         u.Branch,
		TotalTests:     u.TotalTests,
		AverageScore:   u.AverageScore,
		TotalTimeHours: u.TotalTimeHours,
	}
	if viewerID != 0 && u.UserID == viewerID {
		id := u.UserID
		e.UserID = &id
		e.IsCurrentUser = true
	}
	return e
}

// RedactName keeps the first name and the initial of the last name.
// "Priya Sharma" becomes "Priya S.", a single name is kept and a blank
// name becomes "Anonymous".
func RedactName(name string) string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return anonymousLeaderboardName
	case 1:
		return parts[0]
	}
	last := parts[len(parts)-1]
	r, _ := utf8.DecodeRuneInString(last)
	return parts[0] + " " + string(r) + "."
}

func rankingKey(f repository.LeaderboardFilter) string {
	year := "*"
	if f.Year != nil {
		year = fmt.Sprint(*f.Year)
	}
	return fmt.Sprintf("c=%s|y=%s|b=%s",
		strings.ToLower(strings.TrimSpace(f.Company)), year, strings.ToLower(strings.TrimSpace(f.Branch)))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
