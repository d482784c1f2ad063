// Package audit forwards security and activity events to an append-only
// sink: every event reaches the structured log, and security/activity/error
// events are additionally persisted to the audit_logs table.  A failed
// database write is logged and swallowed — auditing must never fail the
// operation that produced the event.
package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/iliyamo/team-task-board/internal/model"
	"github.com/iliyamo/team-task-board/internal/repository"
)

// Sink receives structured security/activity events.
type Sink interface {
	Security(ctx context.Context, action string, userID *uint64, ip *string, details map[string]any)
	Activity(ctx context.Context, action string, userID uint64, details map[string]any)
	Info(ctx context.Context, action string, userID *uint64, ip *string, details map[string]any)
	Error(ctx context.Context, action string, userID *uint64, ip *string, details map[string]any)
}

// DBSink writes audit rows through an AuditRepo and mirrors every event to
// a zerolog logger.
type DBSink struct {
	Repo *repository.AuditRepo
	Log  zerolog.Logger
}

func NewDBSink(repo *repository.AuditRepo, log zerolog.Logger) *DBSink {
	return &DBSink{Repo: repo, Log: log}
}

func (s *DBSink) Security(ctx context.Context, action string, userID *uint64, ip *string, details map[string]any) {
	s.emit(ctx, model.AuditSecurity, action, userID, ip, details, true)
}

func (s *DBSink) Activity(ctx context.Context, action string, userID uint64, details map[string]any) {
	s.emit(ctx, model.AuditActivity, action, &userID, nil, details, true)
}

func (s *DBSink) Info(ctx context.Context, action string, userID *uint64, ip *string, details map[string]any) {
	s.emit(ctx, model.AuditInfo, action, userID, ip, details, false)
}

func (s *DBSink) Error(ctx context.Context, action string, userID *uint64, ip *string, details map[string]any) {
	s.emit(ctx, model.AuditError, action, userID, ip, details, true)
}

func (s *DBSink) emit(ctx context.Context, level model.AuditLevel, action string, userID *uint64, ip *string, details map[string]any, persist bool) {
	ev := s.Log.Info()
	switch level {
	case model.AuditError:
		ev = s.Log.Error()
	case model.AuditSecurity:
		ev = s.Log.Warn()
	}
	ev = ev.Str("audit_level", string(level)).Str("action", action)
	if userID != nil {
		ev = ev.Uint64("user_id", *userID)
	}
	if ip != nil {
		ev = ev.Str("ip", *ip)
	}
	if details != nil {
		ev = ev.Interface("details", details)
	}
	ev.Msg(action)

	if !persist || s.Repo == nil {
		return
	}
	err := s.Repo.Insert(ctx, model.AuditLog{
		Level:     level,
		UserID:    userID,
		IPAddress: ip,
		Action:    action,
		Details:   details,
	})
	if err != nil {
		s.Log.Error().Err(err).Str("action", action).Msg("audit db write failed")
	}
}

// NopSink discards everything; used in tests.
type NopSink struct{}

func (NopSink) Security(context.Context, string, *uint64, *string, map[string]any) {}
func (NopSink) Activity(context.Context, string, uint64, map[string]any)           {}
func (NopSink) Info(context.Context, string, *uint64, *string, map[string]any)     {}
func (NopSink) Error(context.Context, string, *uint64, *string, map[string]any)    {}
