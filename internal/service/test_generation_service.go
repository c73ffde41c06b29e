package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lshigami/PlacementPrep/config"
	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/cache"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/model"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultNumQuestions = 20
	DefaultYear         = 2025
	MinNumQuestions     = 1
	MaxNumQuestions     = 100
	MaxCompanyLength    = 100

	maxPatternDataLength    = 5000
	maxLabelLength          = 255
	defaultTimeLimitMinutes = 60
)

var companyNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-&\.]+$`)

type GenerateTestInput struct {
	Company         string
	NumQuestions    int
	Year            int
	ForceRegenerate bool
}

// TestGenerationService runs research, synthesis and persistence for a
// company test, serving recent tests from the database instead when it can.
type TestGenerationService interface {
	GenerateTest(ctx context.Context, in GenerateTestInput) (*dto.TestGenerationResult, error)
	GenerateBatch(ctx context.Context, companies []string, numQuestions, year int) (*dto.BatchGenerationResult, error)
	Statistics(ctx context.Context) (*dto.GenerationStatistics, error)
	DeleteTest(ctx context.Context, testID uint) error
}

type testGenerationService struct {
	db           *gorm.DB
	testRepo     repository.TestRepository
	questionRepo repository.QuestionRepository
	research     ResearchService
	synthesis    QuestionSynthesisService
	rankings     cache.RankingCache

	cacheWindow      time.Duration
	batchConcurrency int
	chunkThreshold   int
	chunkSize        int
	now              func() time.Time
}

func NewTestGenerationService(
	db *gorm.DB,
	testRepo repository.TestRepository,
	questionRepo repository.QuestionRepository,
	research ResearchService,
	synthesis QuestionSynthesisService,
	rankings cache.RankingCache,
	cfg *config.Config,
) TestGenerationService {
	s := &testGenerationService{
		db:               db,
		testRepo:         testRepo,
		questionRepo:     questionRepo,
		research:         research,
		synthesis:        synthesis,
		rankings:         rankings,
		cacheWindow:      cfg.Generation.CacheWindow,
		batchConcurrency: cfg.Generation.BatchConcurrency,
		chunkThreshold:   cfg.Synthesis.ChunkThreshold,
		chunkSize:        cfg.Synthesis.ChunkSize,
		now:              func() time.Time { return time.Now().UTC() },
	}
	if s.cacheWindow <= 0 {
		s.cacheWindow = 24 * time.Hour
	}
	if s.batchConcurrency <= 0 {
		s.batchConcurrency = 3
	}
	return s
}

func (s *testGenerationService) GenerateTest(ctx context.Context, in GenerateTestInput) (*dto.TestGenerationResult, error) {
	in.Company = strings.TrimSpace(in.Company)
	if in.NumQuestions == 0 {
		in.NumQuestions = DefaultNumQuestions
	}
	if in.Year == 0 {
		in.Year = DefaultYear
	}
	if err := validateGenerateInput(in); err != nil {
		return nil, err
	}
	if !isPlausibleCompanyName(in.Company) {
		log.Warn().Str("company", in.Company).Msg("Company name looks unusual, generating anyway")
	}

	if !in.ForceRegenerate {
		cached, err := s.testRepo.FindRecentWithQuestions(ctx, in.Company, in.Year, s.now().Add(-s.cacheWindow))
		switch {
		case err == nil:
			log.Info().Str("company", in.Company).Int("year", in.Year).Uint("testID", cached.ID).Msg("Serving test from cache")
			return cachedResult(cached), nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			log.Error().Err(err).Str("company", in.Company).Msg("Cache lookup failed")
			return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "cache lookup failed", err)
		}
	}

	start := time.Now()
	log.Info().Str("company", in.Company).Int("numQuestions", in.NumQuestions).Int("year", in.Year).Msg("Generating test")

	research, err := s.research.Research(ctx, in.Company)
	if err != nil {
		return nil, generationFailed("research phase failed", err)
	}

	var synth *SynthesisResult
	if s.chunkThreshold > 0 && in.NumQuestions > s.chunkThreshold {
		synth, err = s.synthesis.SynthesizeChunked(ctx, research.Content, in.Company, in.NumQuestions, s.chunkSize)
	} else {
		synth, err = s.synthesis.Synthesize(ctx, research.Content, in.Company, in.NumQuestions)
	}
	if err != nil {
		return nil, generationFailed("question synthesis phase failed", err)
	}
	if synth.TotalQuestions == 0 {
		return nil, generationFailed("question synthesis phase failed", errors.New("no questions generated"))
	}

	clipLabels(synth.Sections)
	test := buildTestModel(in, research.Content, synth.Sections)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.testRepo.WithTx(tx).Create(ctx, test)
	})
	if err != nil {
		log.Error().Err(err).Str("company", in.Company).Msg("Failed to persist generated test, rolled back")
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeStorageFailed, "storage failed", err)
	}

	total := time.Since(start).Seconds()
	researchSecs := research.Elapsed.Seconds()
	synthSecs := synth.Elapsed.Seconds()
	log.Info().
		Uint("testID", test.ID).
		Str("company", test.Company).
		Int("questions", len(test.Questions)).
		Float64("seconds", total).
		Msg("Test generated")

	return &dto.TestGenerationResult{
		TestID:                 test.ID,
		Company:                test.Company,
		Year:                   test.Year,
		NumQuestions:           len(test.Questions),
		CreatedAt:              test.CreatedAt,
		FromCache:              false,
		GenerationTime:         &total,
		ResearchTime:           &researchSecs,
		QuestionGenerationTime: &synthSecs,
		Sections:               sectionNames(synth.Sections),
	}, nil
}

// GenerateBatch runs at most batchConcurrency pipelines at once. A failing
// company is recorded and never cancels the others.
func (s *testGenerationService) GenerateBatch(ctx context.Context, companies []string, numQuestions, year int) (*dto.BatchGenerationResult, error) {
	result := &dto.BatchGenerationResult{
		TotalCompanies: len(companies),
		Results:        make(map[string]dto.CompanyGenerationResult, len(companies)),
	}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(s.batchConcurrency)
	for _, company := range companies {
		company := company
		g.Go(func() error {
			res, err := s.GenerateTest(ctx, GenerateTestInput{Company: company, NumQuestions: numQuestions, Year: year})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().Err(err).Str("company", company).Msg("Batch generation failed for company")
				entry := dto.CompanyGenerationResult{Success: false, Error: err.Error()}
				var appErr *apperr.Error
				if errors.As(err, &appErr) {
					entry.Code = appErr.Code
				}
				result.Results[company] = entry
				result.Failed++
				return nil
			}
			result.Results[company] = dto.CompanyGenerationResult{Success: true, Result: res}
			result.Successful++
			return nil
		})
	}
	_ = g.Wait()

	log.Info().
		Int("companies", result.TotalCompanies).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("Batch generation finished")
	return result, nil
}

func (s *testGenerationService) Statistics(ctx context.Context) (*dto.GenerationStatistics, error) {
	tests, err := s.testRepo.Count(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to count tests", err)
	}
	questions, err := s.questionRepo.Count(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to count questions", err)
	}
	perCompany, err := s.testRepo.CountByCompany(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to group tests", err)
	}
	recent, err := s.testRepo.CountCreatedSince(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to count recent tests", err)
	}

	companies := make([]string, 0, len(perCompany))
	for _, c := range perCompany {
		companies = append(companies, c.Company)
	}
	return &dto.GenerationStatistics{
		TotalTests:       tests,
		TotalQuestions:   questions,
		CompaniesCovered: len(companies),
		Companies:        companies,
		RecentTests24h:   recent,
	}, nil
}

func (s *testGenerationService) DeleteTest(ctx context.Context, testID uint) error {
	n, err := s.testRepo.Delete(ctx, testID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("Failed to delete test")
		return apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "failed to delete test", err)
	}
	if n == 0 {
		return apperr.NotFound(apperr.CodeTestNotFound, "test not found")
	}
	if err := s.rankings.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("DeleteTest: failed to invalidate leaderboard cache")
	}
	log.Info().Uint("testID", testID).Msg("Test deleted")
	return nil
}

func validateGenerateInput(in GenerateTestInput) error {
	if in.Company == "" {
		return apperr.Validation(apperr.CodeInvalidCompany, "company", "company name is required")
	}
	if utf8.RuneCountInString(in.Company) > MaxCompanyLength {
		return apperr.Validation(apperr.CodeInvalidCompany, "company", "company name must be at most 100 characters")
	}
	if in.NumQuestions < MinNumQuestions || in.NumQuestions > MaxNumQuestions {
		return apperr.Validation(apperr.CodeInvalidQuestionCount, "num_questions", "number of questions must be between 1 and 100")
	}
	return nil
}

func isPlausibleCompanyName(company string) bool {
	n := utf8.RuneCountInString(company)
	return n >= 2 && n <= MaxCompanyLength && companyNamePattern.MatchString(company)
}

// generationFailed keeps the code of a GenerationFailed cause so malformed
// model output stays distinguishable from a network outage.
func generationFailed(msg string, cause error) error {
	code := apperr.CodeGenerationFailed
	if apperr.Is(cause, apperr.KindStructuralValidation) {
		code = apperr.CodeMalformedOutput
	} else if apperr.Is(cause, apperr.KindExternalService) {
		code = apperr.CodeServiceUnavailable
	}
	return apperr.Wrap(apperr.KindGenerationFailed, code, msg, cause)
}

func buildTestModel(in GenerateTestInput, research string, sections []SynthesizedSection) *model.Test {
	pattern := research
	if r := []rune(pattern); len(r) > maxPatternDataLength {
		pattern = string(r[:maxPatternDataLength])
	}

	test := &model.Test{
		Company:     in.Company,
		Year:        in.Year,
		PatternData: pattern,
	}
	for _, sec := range sections {
		test.TimeLimitMinutes += max(sec.TimeLimitMinutes, 0)
		for _, q := range sec.Questions {
			test.Questions = append(test.Questions, model.Question{
				Section:       sec.Name,
				QuestionText:  q.QuestionText,
				Options:       datatypes.JSONSlice[string](q.Options),
				CorrectAnswer: q.CorrectAnswer,
				Explanation:   q.Explanation,
				Difficulty:    q.Difficulty,
				Topic:         q.Topic,
			})
		}
	}
	if test.TimeLimitMinutes == 0 {
		test.TimeLimitMinutes = defaultTimeLimitMinutes
	}
	return test
}

// clipLabels bounds model-written section names and topics to the column width.
func clipLabels(sections []SynthesizedSection) {
	for i := range sections {
		sections[i].Name = clipRunes(sections[i].Name, maxLabelLength)
		for j := range sections[i].Questions {
			sections[i].Questions[j].Topic = clipRunes(sections[i].Questions[j].Topic, maxLabelLength)
		}
	}
}

func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func cachedResult(test *model.Test) *dto.TestGenerationResult {
	var sections []string
	seen := make(map[string]bool)
	for _, q := range test.Questions {
		if !seen[q.Section] {
			seen[q.Section] = true
			sections = append(sections, q.Section)
		}
	}
	return &dto.TestGenerationResult{
		TestID:       test.ID,
		Company:      test.Company,
		Year:         test.Year,
		NumQuestions: len(test.Questions),
		CreatedAt:    test.CreatedAt,
		FromCache:    true,
		Sections:     sections,
	}
}

func sectionNames(sections []SynthesizedSection) []string {
	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, s.Name)
	}
	return names
}
