package words

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "github.com/CodeAndHammer/wordly/internal/models"
	util "github.com/CodeAndHammer/wordly/internal/util"
)

// WordRecord is a row of the words table.
type WordRecord struct {
	ID         uint              `gorm:"primaryKey"`
	Word       string            `gorm:"size:5;not null;uniqueIndex:idx_word_difficulty"`
	Difficulty models.Difficulty `gorm:"size:10;not null;index;uniqueIndex:idx_word_difficulty"`
	Enabled    bool              `gorm:"not null;default:true"`
	CreatedAt  time.Time
}

func (WordRecord) TableName() string { return "words" }

// DBSource serves random words per difficulty from a gorm database.
type DBSource struct {
	db *gorm.DB
}

func NewDBSource(db *gorm.DB) (*DBSource, error) {
	if err := db.AutoMigrate(&WordRecord{}); err != nil {
		return nil, fmt.Errorf("migrate words table: %w", err)
	}
	return &DBSource{db: db}, nil
}

// OpenPostgres connects to dsn, retrying while the database comes up.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	const maxRetries = 3
	const retryInterval = 2 * time.Second
	var err error
	for i := 0; i <= maxRetries; i++ {
		var db *gorm.DB
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
		if err == nil {
			return db, nil
		}
		util.LogWarn("Words database connection attempt %d failed: %v", i+1, err)
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("connect words database: %w", err)
}

func (s *DBSource) RandomWord(ctx context.Context, difficulty models.Difficulty) (string, error) {
	var rec WordRecord
	err := s.db.WithContext(ctx).
		Where("difficulty = ? AND enabled = ?", difficulty, true).
		Order("RANDOM()").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoWord
	}
	if err != nil {
		return "", fmt.Errorf("query %s word: %w", difficulty, err)
	}
	return rec.Word, nil
}

// Seed inserts words for a difficulty, skipping ones already present.
func (s *DBSource) Seed(ctx context.Context, difficulty models.Difficulty, list []string) (int, error) {
	added := 0
	for _, w := range list {
		rec := WordRecord{Word: w, Difficulty: difficulty, Enabled: true}
		res := s.db.WithContext(ctx).Where(WordRecord{Word: w, Difficulty: difficulty}).FirstOrCreate(&rec)
		if res.Error != nil {
			return added, fmt.Errorf("seed %s: %w", w, res.Error)
		}
		added += int(res.RowsAffected)
	}
	return added, nil
}

// SeedableSource is a Source that can be filled with words.
type SeedableSource interface {
	Source
	Seed(ctx context.Context, difficulty models.Difficulty, list []string) (int, error)
}

// SeedEmpty fills every difficulty that has no words with list and reports
// how many rows each one received.
func SeedEmpty(ctx context.Context, src SeedableSource, list []string) (map[models.Difficulty]int, error) {
	seeded := make(map[models.Difficulty]int)
	for _, d := range models.Difficulties {
		_, err := src.RandomWord(ctx, d)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNoWord) {
			return seeded, fmt.Errorf("check %s words: %w", d, err)
		}
		added, err := src.Seed(ctx, d, list)
		if err != nil {
			return seeded, fmt.Errorf("seed %s words: %w", d, err)
		}
		seeded[d] = added
		util.LogInfo("Seeded %d %s words", added, d)
	}
	return seeded, nil
}
