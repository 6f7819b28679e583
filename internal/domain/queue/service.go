package queue

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/abroroo/medicPro-sub000/internal/domain/isolation"
	"github.com/abroroo/medicPro-sub000/internal/domain/visit"
	"github.com/abroroo/medicPro-sub000/internal/platform/auth"
	"github.com/abroroo/medicPro-sub000/internal/platform/db"
	"github.com/abroroo/medicPro-sub000/internal/platform/events"
	"github.com/abroroo/medicPro-sub000/internal/platform/metrics"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

// VisitManager is the part of the visit lifecycle the queue drives. Every
// method joins the caller's transaction.
type VisitManager interface {
	CreateVisit(ctx context.Context, clinicID uuid.UUID, in visit.CreateInput) (*visit.Visit, error)
	ValidateForAdmission(ctx context.Context, clinicID, visitID, patientID uuid.UUID) (*visit.Visit, error)
	SyncStatusFromQueue(ctx context.Context, clinicID, visitID uuid.UUID, to visit.Status) (*visit.Visit, error)
}

type Service struct {
	repo      Repository
	visits    VisitManager
	validator isolation.Validator
	tx        db.TxRunner
	alloc     *Allocator
	pub       events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(repo Repository, visits VisitManager, validator isolation.Validator, tx db.TxRunner,
	alloc *Allocator, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		visits:    visits,
		validator: validator,
		tx:        tx,
		alloc:     alloc,
		now:       time.Now,
		logger:    logger,
	}
}

// WithPublisher sets where committed queue changes are announced.
func (s *Service) WithPublisher(pub events.Publisher) *Service {
	s.pub = pub
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Admit puts a patient in today's queue. The patient, the optional doctor and
// the optional existing visit are checked against clinicID; when no visit is
// given and a doctor is, a scheduled visit is created. Number allocation and
// every insert share one transaction.
func (s *Service) Admit(ctx context.Context, clinicID uuid.UUID, in AdmitInput) (*Admission, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperrors.NewValidationError("patient_id", "patient_id is required")
	}
	now := s.now()
	day := s.alloc.Day(now)
	actor := auth.UserIDFromContext(ctx)
	visitType := strings.TrimSpace(in.VisitType)

	var res *Admission
	var evt events.QueueEvent
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		res = &Admission{}
		item := &Item{
			ClinicID:  clinicID,
			PatientID: in.PatientID,
			DoctorID:  in.DoctorID,
			QueueDay:  day,
			VisitType: visitType,
			Status:    StatusWaiting,
		}

		if _, err := s.validator.ValidateOwned(ctx, clinicID, isolation.KindPatient, in.PatientID); err != nil {
			return err
		}
		if in.DoctorID != nil {
			if _, err := s.validator.ValidateOwned(ctx, clinicID, isolation.KindDoctor, *in.DoctorID); err != nil {
				return err
			}
		}

		switch {
		case in.VisitID != nil:
			v, err := s.visits.ValidateForAdmission(ctx, clinicID, *in.VisitID, in.PatientID)
			if err != nil {
				return err
			}
			if in.DoctorID != nil && *in.DoctorID != v.DoctorID {
				return apperrors.NewValidationError("doctor_id", "doctor_id does not match the visit's doctor")
			}
			item.DoctorID = &v.DoctorID
			if item.VisitType == "" {
				item.VisitType = v.VisitType
			}
			res.Visit = v
		case in.DoctorID != nil:
			if item.VisitType == "" {
				item.VisitType = DefaultVisitType
			}
			v, err := s.visits.CreateVisit(ctx, clinicID, visit.CreateInput{
				PatientID:      in.PatientID,
				DoctorID:       *in.DoctorID,
				VisitDate:      in.VisitDate,
				VisitType:      item.VisitType,
				ChiefComplaint: in.ChiefComplaint,
			})
			if err != nil {
				return err
			}
			res.Visit = v
		}
		if item.VisitType == "" {
			item.VisitType = DefaultVisitType
		}
		if res.Visit != nil {
			item.VisitID = &res.Visit.ID
		}

		n, err := s.alloc.NextNumber(ctx, clinicID, now)
		if err != nil {
			return err
		}
		item.QueueNumber = n
		if err := s.repo.Create(ctx, item); err != nil {
			return err
		}
		if err := s.logEvent(ctx, item, "", actor); err != nil {
			return err
		}
		res.Item = item
		evt = newEvent(events.EventQueueAdmitted, item, "", actor, now)
		return nil
	})
	if err != nil {
		s.recordFailure(err, true)
		return nil, apperrors.Wrap("admit to queue", err)
	}

	s.metrics.RecordAdmission("admitted")
	s.logger.Info().Str("clinic_id", clinicID.String()).Str("queue_item_id", res.Item.ID.String()).
		Int("queue_number", res.Item.QueueNumber).Msg("patient admitted to queue")
	s.publish(ctx, evt)
	return res, nil
}

// SetStatus moves an item owned by clinicID to status to and cascades the
// change to its visit in the same transaction.
func (s *Service) SetStatus(ctx context.Context, clinicID, itemID uuid.UUID, to Status) (*Item, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}
	now := s.now()
	actor := auth.UserIDFromContext(ctx)

	var item *Item
	var evts []events.QueueEvent
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		evts = evts[:0]
		var err error
		item, err = s.repo.GetForUpdate(ctx, clinicID, itemID)
		if err != nil {
			return err
		}
		if item.Status == to && !to.IsTerminal() {
			return nil
		}
		if to == StatusServing {
			serving, err := s.repo.FindServing(ctx, clinicID)
			if err != nil {
				return err
			}
			if serving != nil && serving.ID != item.ID {
				return apperrors.NewInvalidStateError("another patient is already being served")
			}
		}
		evt, err := s.transition(ctx, item, to, actor, now)
		if err != nil {
			return err
		}
		evts = append(evts, evt)
		return nil
	})
	if err != nil {
		s.recordFailure(err, false)
		return nil, apperrors.Wrap("set queue status", err)
	}

	s.afterCommit(ctx, evts)
	return item, nil
}

// CallNext completes the item being served, if any and whatever its queue day,
// and promotes the lowest numbered waiting item of today, in one transaction.
// It fails with NotFound only when there was nothing to complete and nothing
// to promote.
func (s *Service) CallNext(ctx context.Context, clinicID uuid.UUID) (*CallNextResult, error) {
	now := s.now()
	day := s.alloc.Day(now)
	actor := auth.UserIDFromContext(ctx)

	var res *CallNextResult
	var evts []events.QueueEvent
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		res = &CallNextResult{}
		evts = evts[:0]

		current, err := s.repo.FindServing(ctx, clinicID)
		if err != nil {
			return err
		}
		if current != nil {
			evt, err := s.transition(ctx, current, StatusCompleted, actor, now)
			if err != nil {
				return err
			}
			evts = append(evts, evt)
			res.Completed = current
		}

		next, err := s.repo.NextWaiting(ctx, clinicID, day)
		if err != nil {
			return err
		}
		if next == nil {
			if current == nil {
				return &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Message: "no waiting patients in queue"}
			}
			return nil
		}
		evt, err := s.transition(ctx, next, StatusServing, actor, now)
		if err != nil {
			return err
		}
		evts = append(evts, evt)
		res.Serving = next
		return nil
	})
	if err != nil {
		s.recordFailure(err, false)
		return nil, apperrors.Wrap("call next", err)
	}

	s.afterCommit(ctx, evts)
	return res, nil
}

// TodaysQueue lists today's items in queue number order.
func (s *Service) TodaysQueue(ctx context.Context, clinicID uuid.UUID) ([]*Entry, error) {
	entries, err := s.repo.ListDay(ctx, clinicID, s.alloc.Day(s.now()))
	if err != nil {
		return nil, apperrors.Wrap("list queue", err)
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return entries, nil
}

// Stats counts today's items per status.
func (s *Service) Stats(ctx context.Context, clinicID uuid.UUID) (*Stats, error) {
	day := s.alloc.Day(s.now())
	counts, err := s.repo.CountByStatus(ctx, clinicID, day)
	if err != nil {
		return nil, apperrors.Wrap("queue stats", err)
	}
	st := &Stats{
		Day:       day.Format("2006-01-02"),
		Waiting:   counts[StatusWaiting],
		Serving:   counts[StatusServing],
		Completed: counts[StatusCompleted],
		Skipped:   counts[StatusSkipped],
		Cancelled: counts[StatusCancelled],
	}
	st.Total = st.Waiting + st.Serving + st.Completed + st.Skipped + st.Cancelled
	return st, nil
}

// History returns the transition log of an item owned by clinicID.
func (s *Service) History(ctx context.Context, clinicID, itemID uuid.UUID) ([]*Event, error) {
	if _, err := s.validator.ValidateOwned(ctx, clinicID, isolation.KindQueueItem, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, clinicID, itemID)
}

// transition applies one edge of the state machine to a locked item, writes
// the linked visit and the log row. The caller owns the transaction.
func (s *Service) transition(ctx context.Context, item *Item, to Status, actor string, now time.Time) (events.QueueEvent, error) {
	from := item.Status
	if !CanTransition(from, to) {
		return events.QueueEvent{}, apperrors.NewInvalidTransitionError("queue item", string(from), string(to))
	}

	item.Status = to
	ts := now.UTC()
	switch {
	case to == StatusServing:
		item.CalledAt = &ts
	case to.IsTerminal():
		item.CompletedAt = &ts
	}
	if err := s.repo.UpdateStatus(ctx, item); err != nil {
		return events.QueueEvent{}, err
	}

	if vs, ok := VisitStatusFor(to); ok && item.VisitID != nil {
		if _, err := s.visits.SyncStatusFromQueue(ctx, item.ClinicID, *item.VisitID, vs); err != nil {
			return events.QueueEvent{}, err
		}
	}
	if err := s.logEvent(ctx, item, string(from), actor); err != nil {
		return events.QueueEvent{}, err
	}
	return newEvent(events.EventQueueStatus, item, string(from), actor, now), nil
}

func (s *Service) logEvent(ctx context.Context, item *Item, from, actor string) error {
	return s.repo.AddEvent(ctx, &Event{
		ClinicID:    item.ClinicID,
		QueueItemID: item.ID,
		FromStatus:  from,
		ToStatus:    item.Status,
		ActorID:     actor,
	})
}

func (s *Service) afterCommit(ctx context.Context, evts []events.QueueEvent) {
	for _, evt := range evts {
		s.metrics.RecordTransition(evt.FromStatus, evt.ToStatus)
		s.logger.Info().Str("clinic_id", evt.ClinicID.String()).Str("queue_item_id", evt.QueueItemID.String()).
			Str("from", evt.FromStatus).Str("to", evt.ToStatus).Msg("queue item status changed")
		s.publish(ctx, evt)
	}
}

// publish runs after commit. A failed publish is logged and otherwise
// ignored; boards re-read the queue on reconnect.
func (s *Service) publish(ctx context.Context, evt events.QueueEvent) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.Warn().Err(err).Str("clinic_id", evt.ClinicID.String()).Msg("queue event publish failed")
	}
}

func (s *Service) recordFailure(err error, admission bool) {
	if apperrors.IsConcurrency(err) {
		s.metrics.RecordConflict()
	}
	if admission {
		s.metrics.RecordAdmission("rejected")
	}
}

func newEvent(typ events.EventType, item *Item, from, actor string, at time.Time) events.QueueEvent {
	return events.QueueEvent{
		ID:          uuid.New(),
		Type:        typ,
		ClinicID:    item.ClinicID,
		QueueItemID: item.ID,
		QueueNumber: item.QueueNumber,
		VisitID:     item.VisitID,
		FromStatus:  from,
		ToStatus:    string(item.Status),
		ActorID:     actor,
		OccurredAt:  at.UTC(),
	}
}
