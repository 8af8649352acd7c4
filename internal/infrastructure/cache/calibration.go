package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/provenly/interview-integrity-backend/internal/domain/gaze"
)

// calibrationTTL keeps stale calibrations from outliving their interview
// by more than a day.
const calibrationTTL = 24 * time.Hour

// CalibrationStore persists per-interview gaze calibration: the derived
// bounds plus the raw samples from biometric setup. Read once per session
// start, read-only for the rest of the interview.
type CalibrationStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCalibrationStore(client *redis.Client, logger *zap.Logger) *CalibrationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalibrationStore{client: client, logger: logger}
}

func calibrationKey(interviewID uuid.UUID) string {
	return fmt.Sprintf("gaze_calibration:%s", interviewID)
}

// Save stores the calibration for an interview.
func (s *CalibrationStore) Save(ctx context.Context, interviewID uuid.UUID, cal *gaze.Calibration) error {
	data, err := json.Marshal(cal)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration: %w", err)
	}

	if err := s.client.Set(ctx, calibrationKey(interviewID), data, calibrationTTL).Err(); err != nil {
		s.logger.Error("calibration save failed",
			zap.String("interview_id", interviewID.String()),
			zap.Error(err))
		return fmt.Errorf("calibration save failed: %w", err)
	}
	return nil
}

// Load returns the stored calibration, or nil when none exists. A corrupt
// entry is treated as missing: the tracker falls back to viewport bounds.
func (s *CalibrationStore) Load(ctx context.Context, interviewID uuid.UUID) (*gaze.Calibration, error) {
	data, err := s.client.Get(ctx, calibrationKey(interviewID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("calibration load failed: %w", err)
	}

	var cal gaze.Calibration
	if err := json.Unmarshal(data, &cal); err != nil {
		s.logger.Warn("invalid calibration data, ignoring",
			zap.String("interview_id", interviewID.String()),
			zap.Error(err))
		return nil, nil
	}
	return &cal, nil
}
