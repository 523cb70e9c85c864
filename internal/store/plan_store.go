// Package store persists finished planning runs in Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	tripweaver "github.com/ZanzyTHEbar/tripweaver-genkit"
	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/embedding"
)

// ErrPlanNotFound is returned when no record exists for a run.
var ErrPlanNotFound = errors.New("plan not found")

// PlanRecord is one finished run.
type PlanRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunID        string    `gorm:"uniqueIndex"`
	UserID       string    `gorm:"index"`
	Destination  string    `gorm:"index"`
	StartDate    string
	EndDate      string
	Budget       float64
	Currency     string         `gorm:"size:3"`
	Interests    pq.StringArray `gorm:"type:text[]"`
	Status       string
	QualityScore *float64
	TotalCost    float64
	Summary      string
	Result       string           `gorm:"type:jsonb"`
	Embedding    *pgvector.Vector `gorm:"type:vector"`
	CreatedAt    time.Time        `gorm:"autoCreateTime"`
}

func (PlanRecord) TableName() string { return "trip_plans" }

// BeforeCreate assigns the record ID.
func (r *PlanRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// NewRecord flattens a planning state into a record. vector may be nil.
func NewRecord(state *tripweaver.PlanningState, vector *pgvector.Vector) (PlanRecord, error) {
	result, err := json.Marshal(state)
	if err != nil {
		return PlanRecord{}, fmt.Errorf("encoding plan: %w", err)
	}
	req := state.Request
	rec := PlanRecord{
		RunID:       state.RunID,
		UserID:      req.UserID,
		Destination: strings.ToLower(strings.TrimSpace(req.Destination)),
		StartDate:   req.StartDate.String(),
		EndDate:     req.EndDate.String(),
		Budget:      req.Budget,
		Currency:    req.CurrencyOrDefault(),
		Interests:   pq.StringArray(req.Interests),
		Status:      string(state.CurrentStep),
		Summary:     state.SummaryMessage,
		Result:      string(result),
		Embedding:   vector,
	}
	if state.RiskAnalysis != nil {
		q := state.RiskAnalysis.QualityScore.OverallScore
		rec.QualityScore = &q
	}
	if state.Itinerary != nil {
		rec.TotalCost = state.Itinerary.Summary.TotalEstimatedCost
	}
	return rec, nil
}

// ProfileText is the text embedded for similar-trip lookups.
func ProfileText(destination string, interests []string) string {
	text := "Trip to " + strings.TrimSpace(destination)
	if len(interests) > 0 {
		text += " for " + strings.Join(interests, ", ")
	}
	return text
}

// PlanStore implements the planner's result store on gorm.
type PlanStore struct {
	db       *gorm.DB
	embedder embedding.Embedder
}

// Open connects to Postgres.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting database instance: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}
}

// NewPlanStore creates a store. A nil embedder stores plans without vectors.
func NewPlanStore(db *gorm.DB, embedder embedding.Embedder) *PlanStore {
	return &PlanStore{db: db, embedder: embedder}
}

// Migrate creates the vector extension and the plans table.
func (s *PlanStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}
	return s.db.WithContext(ctx).AutoMigrate(&PlanRecord{})
}

// SavePlan stores or replaces the record of a run.
func (s *PlanStore) SavePlan(ctx context.Context, state *tripweaver.PlanningState) error {
	var vector *pgvector.Vector
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, ProfileText(state.Request.Destination, state.Request.Interests))
		if err != nil {
			log.Printf("Plan embedding failed, storing without vector (run_id: %s, error: %v)", state.RunID, err)
		} else {
			vector = &v
		}
	}
	rec, err := NewRecord(state, vector)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", rec.RunID).Delete(&PlanRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("saving plan %s: %w", rec.RunID, err)
	}
	log.Printf("Plan persisted (run_id: %s, destination: %s, status: %s)", rec.RunID, rec.Destination, rec.Status)
	return nil
}

// GetPlan loads the record of a run.
func (s *PlanStore) GetPlan(ctx context.Context, runID string) (*PlanRecord, error) {
	var rec PlanRecord
	err := s.db.WithContext(ctx).First(&rec, "run_id = ?", runID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListPlans returns the newest records, optionally for one user.
func (s *PlanStore) ListPlans(ctx context.Context, userID string, limit int) ([]PlanRecord, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []PlanRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// SimilarPlans returns completed plans whose profile is closest to the
// given destination and interests.
func (s *PlanStore) SimilarPlans(ctx context.Context, destination string, interests []string, k int) ([]PlanRecord, error) {
	if s.embedder == nil {
		return nil, errors.New("similar plans need an embedder")
	}
	v, err := s.embedder.Embed(ctx, ProfileText(destination, interests))
	if err != nil {
		return nil, err
	}
	var recs []PlanRecord
	err = s.db.WithContext(ctx).Raw(similarQuery, v.String(), string(tripweaver.StateCompleted), k).Scan(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

const similarQuery = `
	SELECT * FROM trip_plans
	WHERE embedding IS NOT NULL AND status = $2
	ORDER BY embedding <-> $1
	LIMIT $3
`
