package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/PlacementPrep/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with the schema migrated.
// A single connection keeps every statement on the same memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, name string, year int, branch string) *model.User {
	t.Helper()
	u := &model.User{
		Email:  strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "-" + uuid.NewString()[:8] + "@example.com",
		Name:   name,
		Year:   year,
		Branch: branch,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func CreateAdmin(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	u := CreateUser(t, db, name, 0, "")
	require.NoError(t, db.Model(u).Update("is_admin", true).Error)
	u.IsAdmin = true
	return u
}

// SectionSpec describes questions to seed: Correct holds the answer label of
// each question in the section.
type SectionSpec struct {
	Name    string
	Correct []string
}

// CreateTest seeds a test whose questions carry four labelled options.
func CreateTest(t *testing.T, db *gorm.DB, company string, year int, sections ...SectionSpec) *model.Test {
	t.Helper()
	test := &model.Test{Company: company, Year: year, PatternData: "pattern for " + company, TimeLimitMinutes: 60}
	for _, s := range sections {
		for i, label := range s.Correct {
			test.Questions = append(test.Questions, model.Question{
				Section:       s.Name,
				QuestionText:  fmt.Sprintf("%s question %d", s.Name, i+1),
				Options:       datatypes.JSONSlice[string]{"A) one", "B) two", "C) three", "D) four"},
				CorrectAnswer: label,
				Explanation:   "because",
				Difficulty:    "medium",
				Topic:         s.Name,
			})
		}
	}
	require.NoError(t, db.Create(test).Error)
	return test
}

// CreateAttempt stores an already scored attempt directly.
func CreateAttempt(t *testing.T, db *gorm.DB, userID, testID uint, score float64, total, timeTaken int, startedAt time.Time) *model.TestAttempt {
	t.Helper()
	completed := startedAt.Add(time.Duration(timeTaken) * time.Second)
	a := &model.TestAttempt{
		UserID:         userID,
		TestID:         testID,
		Score:          score,
		TotalQuestions: total,
		TimeTaken:      timeTaken,
		Answers:        datatypes.NewJSONType(map[string]string{}),
		StartedAt:      startedAt,
		CompletedAt:    &completed,
	}
	require.NoError(t, db.Omit("User", "Test").Create(a).Error)
	return a
}
