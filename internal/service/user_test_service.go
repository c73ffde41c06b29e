package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/dto"
	"github.com/lshigami/PlacementPrep/internal/model"
	"github.com/lshigami/PlacementPrep/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SupportedCompanies are the companies offered in the company picker.
var SupportedCompanies = []string{
	"TCS NQT", "Infosys", "Capgemini", "Wipro", "Accenture",
	"Cognizant", "HCL", "Tech Mahindra", "IBM", "Microsoft",
	"Amazon", "Google", "Deloitte", "EY", "KPMG", "PwC",
}

type GetTestOptions struct {
	IncludeAnswers bool
	Randomize      bool
	Section        string
}

type UserTestService interface {
	GetAllTests(ctx context.Context) ([]dto.TestSummaryDTO, error)
	GetTest(ctx context.Context, testID uint, viewer *model.User, opts GetTestOptions) (*dto.TestDetailResponse, error)
	ListCompanies(ctx context.Context) ([]dto.CompanyInfo, error)
}

type userTestService struct {
	testRepo    repository.TestRepository
	attemptRepo repository.TestAttemptRepository
	shuffle     func(n int, swap func(i, j int))
}

func NewUserTestService(testRepo repository.TestRepository, attemptRepo repository.TestAttemptRepository) UserTestService {
	return &userTestService{testRepo: testRepo, attemptRepo: attemptRepo, shuffle: rand.Shuffle}
}

func (s *userTestService) GetAllTests(ctx context.Context) ([]dto.TestSummaryDTO, error) {
	testsWithCount, err := s.testRepo.FindAllWithQuestionCount(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get all tests with question count from repository")
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "error fetching tests", err)
	}

	dtos := make([]dto.TestSummaryDTO, 0, len(testsWithCount))
	for _, twc := range testsWithCount {
		dtos = append(dtos, dto.TestSummaryDTO{
			ID:               twc.Test.ID,
			Company:          twc.Test.Company,
			Year:             twc.Test.Year,
			TimeLimitMinutes: twc.Test.TimeLimitMinutes,
			QuestionCount:    twc.QuestionCount,
			CreatedAt:        twc.Test.CreatedAt,
		})
	}
	return dtos, nil
}

// GetTest serves a test grouped by section in first-appearance order.
// Answers and explanations are only included for admins; shuffling stays
// inside each section.
func (s *userTestService) GetTest(ctx context.Context, testID uint, viewer *model.User, opts GetTestOptions) (*dto.TestDetailResponse, error) {
	privileged := viewer != nil && viewer.IsAdmin
	if opts.IncludeAnswers && !privileged {
		return nil, apperr.New(apperr.KindForbidden, apperr.CodeForbidden, "admin access required to include answers")
	}

	test, err := s.testRepo.FindByIDWithQuestions(ctx, testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(apperr.CodeTestNotFound, "test not found")
		}
		log.Error().Err(err).Uint("testID", testID).Msg("Failed to get test details from repository")
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "error fetching test", err)
	}

	filter := strings.ToLower(strings.TrimSpace(opts.Section))
	sections := []dto.SectionView{}
	index := make(map[string]int)
	total := 0
	for _, q := range test.Questions {
		if filter != "" && !strings.Contains(strings.ToLower(q.Section), filter) {
			continue
		}
		view, err := questionView(q, opts.IncludeAnswers)
		if err != nil {
			return nil, err
		}
		i, ok := index[q.Section]
		if !ok {
			i = len(sections)
			index[q.Section] = i
			sections = append(sections, dto.SectionView{SectionName: q.Section})
		}
		sections[i].Questions = append(sections[i].Questions, view)
		total++
	}

	if opts.Randomize {
		for i := range sections {
			qs := sections[i].Questions
			s.shuffle(len(qs), func(a, b int) { qs[a], qs[b] = qs[b], qs[a] })
		}
	}

	meta := dto.TestMetadata{CreatedAt: test.CreatedAt}
	if viewer != nil {
		n, err := s.attemptRepo.CountByTestAndUser(ctx, test.ID, viewer.ID)
		if err != nil {
			log.Warn().Err(err).Uint("testID", test.ID).Msg("Failed to count user attempts")
		}
		meta.UserAttempts = n
	}
	if privileged {
		meta.PatternData = test.PatternData
	}

	return &dto.TestDetailResponse{
		TestID:           test.ID,
		Company:          test.Company,
		Year:             test.Year,
		TotalQuestions:   total,
		TimeLimitMinutes: test.TimeLimitMinutes,
		Sections:         sections,
		Metadata:         meta,
	}, nil
}

func questionView(q model.Question, includeAnswers bool) (dto.QuestionView, error) {
	var view dto.QuestionView
	if err := copier.Copy(&view, &q); err != nil {
		log.Error().Err(err).Uint("questionID", q.ID).Msg("Failed to copy Question model to QuestionView")
		return dto.QuestionView{}, apperr.Wrap(apperr.KindInternal, apperr.CodeInternal, "error preparing question", err)
	}
	view.Options = append([]string(nil), q.Options...)
	if !includeAnswers {
		view.CorrectAnswer = ""
		view.Explanation = ""
	}
	return view, nil
}

// ListCompanies returns the supported companies followed by any other
// company that already has generated tests.
func (s *userTestService) ListCompanies(ctx context.Context) ([]dto.CompanyInfo, error) {
	counts, err := s.testRepo.CountByCompany(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count tests per company")
		return nil, apperr.Wrap(apperr.KindDatabase, apperr.CodeDatabaseError, "error fetching companies", err)
	}
	byCompany := make(map[string]int, len(counts))
	for _, c := range counts {
		byCompany[strings.ToLower(c.Company)] += c.TestCount
	}

	out := make([]dto.CompanyInfo, 0, len(SupportedCompanies)+len(counts))
	listed := make(map[string]bool)
	for _, name := range SupportedCompanies {
		key := strings.ToLower(name)
		listed[key] = true
		out = append(out, dto.CompanyInfo{Name: name, Supported: true, GeneratedTests: byCompany[key]})
	}
	for _, c := range counts {
		key := strings.ToLower(c.Company)
		if listed[key] {
			continue
		}
		listed[key] = true
		out = append(out, dto.CompanyInfo{Name: c.Company, Supported: false, GeneratedTests: byCompany[key]})
	}
	return out, nil
}
