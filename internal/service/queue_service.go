package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tablequeue/internal/domain"
	"tablequeue/internal/events"
	"tablequeue/internal/metrics"
	"tablequeue/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QueueService admits customers, seats them and turns tables over.
type QueueService struct {
	store              domain.QueueStore
	notifier           domain.Notifier
	clock              domain.Clock
	averageServiceTime int
	nearbyLimit        int
	logger             *zerolog.Logger
}

func NewQueueService(
	store domain.QueueStore,
	notifier domain.Notifier,
	clock domain.Clock,
	averageServiceTime, nearbyLimit int,
	logger *zerolog.Logger,
) *QueueService {
	if averageServiceTime <= 0 {
		averageServiceTime = models.DefaultAverageServiceTime
	}
	if nearbyLimit <= 0 {
		nearbyLimit = models.DefaultNearbyLimit
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &QueueService{
		store:              store,
		notifier:           notifier,
		clock:              clock,
		averageServiceTime: averageServiceTime,
		nearbyLimit:        nearbyLimit,
		logger:             logger,
	}
}

type AdmitRequest struct {
	ShopID           string `json:"shop_id"`
	TableTypeID      string `json:"table_type_id"`
	CustomerID       string `json:"customer_id"`
	UserRequirements string `json:"user_requirements"`
}

// Admit seats the customer right away when a table of the type is free and
// otherwise appends them to today's waiting line.
func (s *QueueService) Admit(ctx context.Context, req AdmitRequest) (*models.Queue, error) {
	if req.ShopID == "" || req.TableTypeID == "" || req.CustomerID == "" {
		return nil, fmt.Errorf("%w: shop_id, table_type_id and customer_id are required", domain.ErrInvalidInput)
	}

	var entry *models.Queue
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.QueueRepository) error {
		if err := tx.LockTableType(ctx, req.ShopID, req.TableTypeID); err != nil {
			return err
		}
		totalTables, err := s.capacity(ctx, tx, req.ShopID, req.TableTypeID)
		if err != nil {
			return err
		}

		occupiedTables, err := tx.CountActiveTables(ctx, req.ShopID, req.TableTypeID)
		if err != nil {
			return err
		}
		occupiedAtQueue, err := tx.CountQueues(ctx, models.QueueFilter{
			ShopID:      req.ShopID,
			TableTypeID: req.TableTypeID,
			Statuses:    models.OccupyingStatuses,
		})
		if err != nil {
			return err
		}

		now := s.clock.Now()
		entry = &models.Queue{
			ID:               uuid.NewString(),
			ShopID:           req.ShopID,
			TableTypeID:      req.TableTypeID,
			CustomerID:       req.CustomerID,
			UserRequirements: strings.TrimSpace(req.UserRequirements),
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if occupiedTables < totalTables && occupiedAtQueue < totalTables {
			entry.Status = models.StatusReadyToSeat
		} else {
			waitingAhead, err := tx.CountQueues(ctx, models.QueueFilter{
				ShopID:      req.ShopID,
				TableTypeID: req.TableTypeID,
				Statuses:    []string{models.StatusWaiting},
			})
			if err != nil {
				return err
			}
			lastNumber, err := tx.MaxQueueNumberSince(ctx, req.ShopID, req.TableTypeID, s.clock.StartOfDay(now))
			if err != nil {
				return err
			}

			entry.Status = models.StatusWaiting
			entry.QueueNumber = lastNumber + 1
			entry.EstimatedWaitTime = EstimateWait(waitingAhead+1, totalTables, s.averageServiceTime)
		}

		s.logger.Debug().
			Str("shop_id", req.ShopID).
			Str("table_type_id", req.TableTypeID).
			Int("total_tables", totalTables).
			Int("occupied_tables", occupiedTables).
			Int("occupied_at_queue", occupiedAtQueue).
			Str("status", entry.Status).
			Msg("admission decided")

		return tx.CreateQueue(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("admit: %w", err)
	}

	metrics.IncAdmission(entry.Status)
	return entry, nil
}

// capacity is zero for an unknown table type. A type of another shop is rejected.
func (s *QueueService) capacity(ctx context.Context, tx domain.QueueRepository, shopID, tableTypeID string) (int, error) {
	tt, err := tx.GetTableType(ctx, tableTypeID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn().Str("table_type_id", tableTypeID).Msg("table type not found, treating capacity as zero")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if tt.ShopID != shopID {
		return 0, fmt.Errorf("%w: table type %s does not belong to shop %s", domain.ErrInvalidInput, tableTypeID, shopID)
	}
	if tt.Capacity < 0 {
		return 0, nil
	}
	return tt.Capacity, nil
}

// EstimateWait is ceil(position/tables) turnovers of serviceTime minutes.
// With no tables every position counts as a full turnover.
func EstimateWait(position, tables, serviceTime int) int {
	if position <= 0 {
		return 0
	}
	if tables <= 0 {
		tables = 1
	}
	turnovers := (position + tables - 1) / tables
	return turnovers * serviceTime
}

// ConfirmQR records the customer's QR check-in.
func (s *QueueService) ConfirmQR(ctx context.Context, queueID, qr string) (*models.Queue, error) {
	if queueID == "" || strings.TrimSpace(qr) == "" {
		return nil, fmt.Errorf("%w: queue_id and queue_qr are required", domain.ErrInvalidInput)
	}

	var confirmed *models.Queue
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.QueueRepository) error {
		q, err := tx.GetQueue(ctx, queueID)
		if err != nil {
			return err
		}
		if !models.CanTransition(q.Status, models.StatusQRScanned) {
			return fmt.Errorf("%w: queue %s is %s", domain.ErrInvalidState, q.ID, q.Status)
		}

		q.QueueQR = qr
		q.Status = models.StatusQRScanned
		q.EstimatedWaitTime = 0
		q.UpdatedAt = s.clock.Now()
		if err := tx.UpdateQueue(ctx, q); err != nil {
			return err
		}
		confirmed = q
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("confirm qr: %w", err)
	}
	return confirmed, nil
}

type AssignTableRequest struct {
	QueueID     string `json:"queue_id"`
	TableNo     string `json:"table_no"`
	TableTypeID string `json:"table_type_id"`
	ShopID      string `json:"shop_id"`
}

// AssignTable seats a checked-in entry at a physical table.
func (s *QueueService) AssignTable(ctx context.Context, req AssignTableRequest) (*models.Queue, error) {
	if req.QueueID == "" || strings.TrimSpace(req.TableNo) == "" {
		return nil, fmt.Errorf("%w: queue_id and table_no are required", domain.ErrInvalidInput)
	}

	var seated *models.Queue
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.QueueRepository) error {
		q, err := tx.GetQueue(ctx, req.QueueID)
		if err != nil {
			return err
		}
		if q.QueueQR == "" {
			return fmt.Errorf("%w: queue %s has not confirmed its qr code", domain.ErrInvalidState, q.ID)
		}
		if !models.CanTransition(q.Status, models.StatusSeated) || q.Status == models.StatusSeated {
			return fmt.Errorf("%w: queue %s is %s", domain.ErrInvalidState, q.ID, q.Status)
		}

		if req.ShopID != "" {
			q.ShopID = req.ShopID
		}
		if req.TableTypeID != "" {
			q.TableTypeID = req.TableTypeID
		}
		now := s.clock.Now()
		q.TableNo = strings.TrimSpace(req.TableNo)
		q.Status = models.StatusSeated
		q.UpdatedAt = now

		if err := tx.UpdateQueue(ctx, q); err != nil {
			return err
		}
		if err := tx.CreateTableStatus(ctx, &models.TableStatus{
			ID:          uuid.NewString(),
			ShopID:      q.ShopID,
			TableTypeID: q.TableTypeID,
			TableNo:     q.TableNo,
			IsActive:    true,
			QueueID:     q.ID,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		seated = q
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("assign table: %w", err)
	}
	return seated, nil
}

type FreeTableRequest struct {
	ShopID      string `json:"shop_id"`
	TableNo     string `json:"table_no"`
	TableTypeID string `json:"table_type_id"`
}

// FreeTable releases an occupied table, archives the entry that sat there and
// promotes the next waiting entry. It returns the promoted entry or nil.
func (s *QueueService) FreeTable(ctx context.Context, req FreeTableRequest) (*models.Queue, error) {
	if req.ShopID == "" || req.TableTypeID == "" || strings.TrimSpace(req.TableNo) == "" {
		return nil, fmt.Errorf("%w: shop_id, table_no and table_type_id are required", domain.ErrInvalidInput)
	}

	var (
		promoted  *models.Queue
		freed     bool
		tableType *models.TableType
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.QueueRepository) error {
		// Reset captured state in case the store retries fn.
		promoted, freed, tableType = nil, false, nil

		if err := tx.LockTableType(ctx, req.ShopID, req.TableTypeID); err != nil {
			return err
		}
		table, err := tx.TakeActiveTable(ctx, req.ShopID, req.TableTypeID, strings.TrimSpace(req.TableNo))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: no active table %s", domain.ErrNotFound, req.TableNo)
			}
			return err
		}

		now := s.clock.Now()
		occupant, err := tx.GetQueue(ctx, table.QueueID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Warn().Str("queue_id", table.QueueID).Str("table_no", table.TableNo).Msg("freed table had no active queue entry")
		case err != nil:
			return err
		default:
			occupant.Status = models.StatusFinished
			occupant.UpdatedAt = now
			if err := tx.UpdateQueue(ctx, occupant); err != nil {
				return err
			}
			if err := tx.CreateQueueHistory(ctx, models.NewQueueHistory(uuid.NewString(), occupant, now)); err != nil {
				return err
			}
			if err := tx.DeleteQueue(ctx, occupant.ID); err != nil {
				return err
			}
			freed = true
		}

		next, err := tx.ListQueues(ctx, models.QueueFilter{
			ShopID:      req.ShopID,
			TableTypeID: req.TableTypeID,
			Statuses:    []string{models.StatusWaiting},
			Limit:       1,
		})
		if err != nil {
			return err
		}
		if len(next) > 0 {
			p := next[0]
			p.Status = models.StatusReadyToSeat
			p.EstimatedWaitTime = 0
			p.UpdatedAt = now
			if err := tx.UpdateQueue(ctx, p); err != nil {
				return err
			}
			promoted = p
		}

		if freed {
			tt, err := tx.GetTableType(ctx, req.TableTypeID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			tableType = tt
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("free table: %w", err)
	}

	metrics.IncTableFreed()
	if promoted != nil {
		metrics.IncPromotion()
	}
	s.logger.Info().
		Str("shop_id", req.ShopID).
		Str("table_type_id", req.TableTypeID).
		Str("table_no", req.TableNo).
		Bool("promoted", promoted != nil).
		Msg("table freed")

	if freed {
		event := models.TableFreedEvent{TableTypeID: req.TableTypeID}
		if tableType != nil {
			event.TableTypeName = tableType.Type
		}
		s.publish(ctx, req.ShopID, events.EventFreeTable, event)
	}

	return promoted, nil
}

// NotifyShop publishes a table-freed event without touching any state.
func (s *QueueService) NotifyShop(ctx context.Context, shopID, tableTypeID string) error {
	if shopID == "" {
		return fmt.Errorf("%w: shop_id is required", domain.ErrInvalidInput)
	}
	event := models.TableFreedEvent{TableTypeID: tableTypeID}
	if tableTypeID != "" {
		tt, err := s.store.GetTableType(ctx, tableTypeID)
		if err != nil {
			return fmt.Errorf("notify shop: %w", err)
		}
		event.TableTypeName = tt.Type
	}
	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.Publish(ctx, shopID, events.EventFreeTable, event); err != nil {
		return fmt.Errorf("notify shop: %w", err)
	}
	return nil
}

// publish is best effort: failures are logged and never returned.
func (s *QueueService) publish(ctx context.Context, channel, eventType string, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, channel, eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("channel", channel).Str("event", eventType).Msg("publish event error")
	}
}

func (s *QueueService) GetTableStatus(ctx context.Context, shopID string) ([]*models.TableStatus, error) {
	tables, err := s.store.ListTableStatus(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("get table status: %w", err)
	}
	return tables, nil
}

// CheckNearby flags the earliest waiting entries that should hear their turn
// is close. It does not mark anything as notified.
func (s *QueueService) CheckNearby(ctx context.Context, shopID string) ([]*models.NearbyQueue, error) {
	notSent := false
	candidates, err := s.store.ListQueues(ctx, models.QueueFilter{
		ShopID:           shopID,
		Statuses:         []string{models.StatusWaiting},
		NotificationSent: &notSent,
		Limit:            s.nearbyLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("check nearby: %w", err)
	}

	readyCount, err := s.store.CountQueues(ctx, models.QueueFilter{
		ShopID:   shopID,
		Statuses: models.ReadyStatuses,
	})
	if err != nil {
		return nil, fmt.Errorf("check nearby: %w", err)
	}

	notifyCount := s.nearbyLimit - readyCount
	if notifyCount < 0 {
		notifyCount = 0
	}
	if notifyCount > len(candidates) {
		notifyCount = len(candidates)
	}

	out := make([]*models.NearbyQueue, 0, notifyCount)
	for _, q := range candidates[:notifyCount] {
		out = append(out, &models.NearbyQueue{Queue: q, ShouldNotify: true})
	}
	return out, nil
}

// MarkNotified records that the customer has been told their turn is close.
func (s *QueueService) MarkNotified(ctx context.Context, queueID string) error {
	if err := s.store.MarkQueueNotified(ctx, queueID); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

func (s *QueueService) GetQueue(ctx context.Context, id string) (*models.Queue, error) {
	q, err := s.store.GetQueue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get queue: %w", err)
	}
	return q, nil
}

func (s *QueueService) ListQueues(ctx context.Context, filter models.QueueFilter) ([]*models.Queue, error) {
	list, err := s.store.ListQueues(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	return list, nil
}

func (s *QueueService) ListHistory(ctx context.Context, shopID string) ([]*models.QueueHistory, error) {
	history, err := s.store.ListQueueHistory(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return history, nil
}
