// Package jobs runs the scheduled background work of the program.
package jobs

import (
	"context"
	"fmt"
	"time"

	"Recon340B/internal/config"
	"Recon340B/internal/library"
	"Recon340B/internal/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type CronService struct {
	config map[string]interface{}
	lib    *library.Service
	params config.Params
	sweep  *SweepConfig
	cron   *cron.Cron
}

func NewCronService(cfg map[string]interface{}, lib *library.Service, params config.Params) *CronService {
	sweep := NewDefaultSweepConfig()
	if cfg != nil {
		if v, ok := cfg["sweep_schedule"].(string); ok && v != "" {
			sweep.Schedule = v
		}
		if v, ok := cfg["output_folder"].(string); ok && v != "" {
			sweep.OutputFolder = v
		}
	}
	if params.TimeZone != "" {
		sweep.TimeZone = params.TimeZone
	}
	return &CronService{config: cfg, lib: lib, params: params, sweep: sweep}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	loc, err := time.LoadLocation(s.sweep.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	s.cron = cron.New(cron.WithLocation(loc))

	_, err = s.cron.AddFunc(s.sweep.Schedule, func() {
		if _, err := s.RunSweep(context.Background()); err != nil {
			logger.L().Error("contract expiry sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("unable to schedule contract expiry sweep: %w", err)
	}

	s.cron.Start()
	logger.Audit("cron service started", zap.String("sweep_schedule", s.sweep.Schedule))
	return nil
}

// RunSweep runs the contract expiry sweep once against the library.
func (s *CronService) RunSweep(ctx context.Context) (SweepResult, error) {
	if s.lib == nil || s.lib.Documents == nil {
		return SweepResult{}, fmt.Errorf("contract expiry sweep: library not started")
	}
	sweep := &ExpirySweep{Documents: s.lib.Documents, Params: s.params, Output: s.sweep.OutputFolder}
	return sweep.Run(ctx)
}

func (s *CronService) Stop() error {
	if s.cron == nil {
		return nil
	}
	<-s.cron.Stop().Done()
	logger.L().Info("cron service stopped")
	return nil
}
