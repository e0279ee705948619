package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tablequeue/internal/domain"
	"tablequeue/internal/events"
	"tablequeue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEstimateWait(t *testing.T) {
	tests := []struct {
		position, tables, service, want int
	}{
		{1, 1, 60, 60},
		{2, 1, 60, 120},
		{1, 2, 60, 60},
		{2, 2, 60, 60},
		{3, 2, 60, 120},
		{5, 0, 60, 300},
		{0, 3, 60, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.position, tt.tables), func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateWait(tt.position, tt.tables, tt.service))
		})
	}
}

func newQueueService(t *testing.T, capacity int) (*QueueService, *MockNotifier, *fixedClock) {
	t.Helper()
	db := newTestDB(t)
	seedTableType(t, db, "t1", "s1", capacity)
	notifier := new(MockNotifier)
	clock := newFixedClock(testNow)
	return NewQueueService(db, notifier, clock, 60, 3, nil), notifier, clock
}

func admit(t *testing.T, svc *QueueService, customer string) *models.Queue {
	t.Helper()
	q, err := svc.Admit(context.Background(), AdmitRequest{ShopID: "s1", TableTypeID: "t1", CustomerID: customer})
	require.NoError(t, err)
	return q
}

func seat(t *testing.T, svc *QueueService, q *models.Queue, tableNo string) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.ConfirmQR(ctx, q.ID, "qr-"+q.ID)
	require.NoError(t, err)
	_, err = svc.AssignTable(ctx, AssignTableRequest{QueueID: q.ID, TableNo: tableNo, TableTypeID: "t1", ShopID: "s1"})
	require.NoError(t, err)
}

func TestAdmit_SingleTable(t *testing.T) {
	svc, _, clock := newQueueService(t, 1)

	first := admit(t, svc, "c1")
	assert.Equal(t, models.StatusReadyToSeat, first.Status)
	assert.Equal(t, 0, first.QueueNumber)
	assert.Equal(t, 0, first.EstimatedWaitTime)

	clock.Advance(time.Minute)
	second := admit(t, svc, "c2")
	assert.Equal(t, models.StatusWaiting, second.Status)
	assert.Equal(t, 1, second.QueueNumber)
	assert.Equal(t, 60, second.EstimatedWaitTime)

	clock.Advance(time.Minute)
	third := admit(t, svc, "c3")
	assert.Equal(t, 2, third.QueueNumber)
	assert.Equal(t, 120, third.EstimatedWaitTime)
}

func TestAdmit_ZeroCapacityAlwaysWaits(t *testing.T) {
	svc, _, _ := newQueueService(t, 0)

	q := admit(t, svc, "c1")
	assert.Equal(t, models.StatusWaiting, q.Status)
	assert.Equal(t, 1, q.QueueNumber)
	assert.Equal(t, 60, q.EstimatedWaitTime)
}

func TestAdmit_UnknownTableTypeWaits(t *testing.T) {
	svc, _, _ := newQueueService(t, 1)

	q, err := svc.Admit(context.Background(), AdmitRequest{ShopID: "s1", TableTypeID: "missing", CustomerID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, q.Status)
}

func TestAdmit_Validation(t *testing.T) {
	svc, _, _ := newQueueService(t, 1)
	ctx := context.Background()

	_, err := svc.Admit(ctx, AdmitRequest{ShopID: "s1", TableTypeID: "t1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Admit(ctx, AdmitRequest{ShopID: "other", TableTypeID: "t1", CustomerID: "c1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAdmit_NumbersRestartNextDay(t *testing.T) {
	svc, _, clock := newQueueService(t, 0)

	assert.Equal(t, 1, admit(t, svc, "c1").QueueNumber)
	assert.Equal(t, 2, admit(t, svc, "c2").QueueNumber)

	clock.Advance(24 * time.Hour)
	assert.Equal(t, 1, admit(t, svc, "c3").QueueNumber)
}

func TestAdmit_ConcurrentNumbersAreUnique(t *testing.T) {
	svc, _, _ := newQueueService(t, 0)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	results := make(chan *models.Queue, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := svc.Admit(ctx, AdmitRequest{ShopID: "s1", TableTypeID: "t1", CustomerID: fmt.Sprintf("c%d", i)})
			if err != nil {
				errs <- err
				return
			}
			results <- q
		}(i)
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("admit failed: %v", err)
	}
	seen := map[int]bool{}
	for q := range results {
		assert.False(t, seen[q.QueueNumber], "duplicate queue number %d", q.QueueNumber)
		seen[q.QueueNumber] = true
	}
	assert.Len(t, seen, n)
}

func TestAdmit_ConcurrentLastTableSeatsOnce(t *testing.T) {
	svc, _, _ := newQueueService(t, 1)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	results := make(chan *models.Queue, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := svc.Admit(ctx, AdmitRequest{ShopID: "s1", TableTypeID: "t1", CustomerID: fmt.Sprintf("c%d", i)})
			if err != nil {
				errs <- err
				return
			}
			results <- q
		}(i)
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("admit failed: %v", err)
	}
	ready := 0
	numbers := map[int]bool{}
	for q := range results {
		if q.Status == models.StatusReadyToSeat {
			ready++
			continue
		}
		assert.Equal(t, models.StatusWaiting, q.Status)
		assert.False(t, numbers[q.QueueNumber], "duplicate queue number %d", q.QueueNumber)
		numbers[q.QueueNumber] = true
	}
	assert.Equal(t, 1, ready, "exactly one customer gets the last table")
	assert.Len(t, numbers, n-1)
}

func TestConfirmQR(t *testing.T) {
	svc, _, _ := newQueueService(t, 1)
	ctx := context.Background()
	q := admit(t, svc, "c1")

	got, err := svc.ConfirmQR(ctx, q.ID, "token")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQRScanned, got.Status)
	assert.Equal(t, "token", got.QueueQR)

	_, err = svc.ConfirmQR(ctx, "missing", "token")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.ConfirmQR(ctx, q.ID, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.AssignTable(ctx, AssignTableRequest{QueueID: q.ID, TableNo: "A1", TableTypeID: "t1", ShopID: "s1"})
	require.NoError(t, err)
	_, err = svc.ConfirmQR(ctx, q.ID, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestConfirmQR_RescanDoesNotUndoConcurrentSeating(t *testing.T) {
	db := newTestDB(t)
	seedTableType(t, db, "t1", "s1", 1)
	store := &hookedStore{DB: db}
	svc := NewQueueService(store, new(MockNotifier), newFixedClock(testNow), 60, 3, nil)
	ctx := context.Background()

	q := admit(t, svc, "c1")
	_, err := svc.ConfirmQR(ctx, q.ID, "qr-1")
	require.NoError(t, err)

	assigned := make(chan error, 1)
	store.setAfterGet(func() {
		go func() {
			_, err := svc.AssignTable(ctx, AssignTableRequest{QueueID: q.ID, TableNo: "A1", TableTypeID: "t1", ShopID: "s1"})
			assigned <- err
		}()
		// Give the assignment a chance to run between the read and the write.
		time.Sleep(50 * time.Millisecond)
	})

	_, err = svc.ConfirmQR(ctx, q.ID, "qr-2")
	if err != nil {
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	}
	require.NoError(t, <-assigned)

	got, err := svc.GetQueue(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeated, got.Status)
	assert.Equal(t, "A1", got.TableNo)

	tables, err := svc.GetTableStatus(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}

func TestAssignTable(t *testing.T) {
	svc, _, _ := newQueueService(t, 2)
	ctx := context.Background()

	q := admit(t, svc, "c1")
	_, err := svc.AssignTable(ctx, AssignTableRequest{QueueID: q.ID, TableNo: "A1", TableTypeID: "t1", ShopID: "s1"})
	assert.ErrorIs(t, err, domain.ErrInvalidState, "qr must be confirmed first")

	tables, err := svc.GetTableStatus(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, tables, "a rejected assignment leaves no table record")

	seat(t, svc, q, "A1")
	tables, err = svc.GetTableStatus(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "A1", tables[0].TableNo)
	assert.Equal(t, q.ID, tables[0].QueueID)

	got, err := svc.GetQueue(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeated, got.Status)

	other := admit(t, svc, "c2")
	_, err = svc.ConfirmQR(ctx, other.ID, "qr")
	require.NoError(t, err)
	_, err = svc.AssignTable(ctx, AssignTableRequest{QueueID: other.ID, TableNo: "A1", TableTypeID: "t1", ShopID: "s1"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err = svc.GetQueue(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQRScanned, got.Status, "failed assignment is rolled back")
}

func TestFreeTable_PromotesLowestWaiting(t *testing.T) {
	svc, notifier, clock := newQueueService(t, 1)
	ctx := context.Background()
	notifier.On("Publish", mock.Anything, "s1", events.EventFreeTable, models.TableFreedEvent{TableTypeID: "t1", TableTypeName: "type-t1"}).Return(nil).Once()

	seated := admit(t, svc, "c1")
	seat(t, svc, seated, "A1")
	clock.Advance(time.Minute)
	w1 := admit(t, svc, "c2")
	clock.Advance(time.Minute)
	w2 := admit(t, svc, "c3")
	require.Equal(t, 1, w1.QueueNumber)
	require.Equal(t, 2, w2.QueueNumber)

	promoted, err := svc.FreeTable(ctx, FreeTableRequest{ShopID: "s1", TableNo: "A1", TableTypeID: "t1"})
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, w1.ID, promoted.ID)
	assert.Equal(t, models.StatusReadyToSeat, promoted.Status)

	_, err = svc.GetQueue(ctx, seated.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "finished entry leaves the active set")

	history, err := svc.ListHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, seated.ID, history[0].QueueID)
	assert.Equal(t, models.StatusFinished, history[0].Status)

	tables, err := svc.GetTableStatus(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, tables)

	still, err := svc.GetQueue(ctx, w2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, still.Status)

	notifier.AssertExpectations(t)
}

func TestFreeTable_NoWaitingReturnsNil(t *testing.T) {
	svc, notifier, _ := newQueueService(t, 1)
	notifier.On("Publish", mock.Anything, "s1", events.EventFreeTable, mock.Anything).Return(nil)

	q := admit(t, svc, "c1")
	seat(t, svc, q, "A1")

	promoted, err := svc.FreeTable(context.Background(), FreeTableRequest{ShopID: "s1", TableNo: "A1", TableTypeID: "t1"})
	require.NoError(t, err)
	assert.Nil(t, promoted)
}

func TestFreeTable_UnknownTableChangesNothing(t *testing.T) {
	svc, notifier, _ := newQueueService(t, 1)
	ctx := context.Background()

	q := admit(t, svc, "c1")
	seat(t, svc, q, "A1")
	w := admit(t, svc, "c2")

	_, err := svc.FreeTable(ctx, FreeTableRequest{ShopID: "s1", TableNo: "B9", TableTypeID: "t1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := svc.GetQueue(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)

	tables, err := svc.GetTableStatus(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, tables, 1)

	history, err := svc.ListHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFreeTable_FailedPromotionRollsBack(t *testing.T) {
	db := newTestDB(t)
	seedTableType(t, db, "t1", "s1", 1)
	store := &hookedStore{DB: db}
	notifier := new(MockNotifier)
	svc := NewQueueService(store, notifier, newFixedClock(testNow), 60, 3, nil)
	ctx := context.Background()

	occupant := admit(t, svc, "c1")
	seat(t, svc, occupant, "A1")
	waiting := admit(t, svc, "c2")

	store.failUpdate = func(q *models.Queue) error {
		if q.Status == models.StatusReadyToSeat {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := svc.FreeTable(ctx, FreeTableRequest{ShopID: "s1", TableNo: "A1", TableTypeID: "t1"})
	require.Error(t, err)

	tables, err := svc.GetTableStatus(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, tables, 1, "table record is restored")
	assert.Equal(t, occupant.ID, tables[0].QueueID)

	history, err := svc.ListHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	got, err := svc.GetQueue(ctx, occupant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeated, got.Status)

	got, err = svc.GetQueue(ctx, waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)

	notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFreeTable_PromotesYesterdaysWaitingFirst(t *testing.T) {
	svc, notifier, clock := newQueueService(t, 1)
	notifier.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	seat(t, svc, admit(t, svc, "c1"), "A1")
	first := admit(t, svc, "c2")
	carried := admit(t, svc, "c3")
	require.Equal(t, 2, carried.QueueNumber)

	promoted, err := svc.FreeTable(ctx, FreeTableRequest{ShopID: "s1", TableNo: "A1", TableTypeID: "t1"})
	require.NoError(t, err)
	require.Equal(t, first.ID, promoted.ID)
	seat(t, svc, promoted, "A1")

	clock.Advance(24 * time.Hour)
	today := admit(t, svc, "c4")
	require.Equal(t, 1, today.QueueNumber)

	promoted, err = svc.FreeTable(ctx, FreeTableRequest{ShopID: "s1", TableNo: "A1", TableTypeID: "t1"})
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, carried.ID, promoted.ID, "earlier admission goes first across days")
}

func TestFreeTable_NotifierFailureIsNotReturned(t *testing.T) {
	svc, notifier, _ := newQueueService(t, 1)
	notifier.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	q := admit(t, svc, "c1")
	seat(t, svc, q, "A1")

	_, err := svc.FreeTable(context.Background(), FreeTableRequest{ShopID: "s1", TableNo: "A1", TableTypeID: "t1"})
	assert.NoError(t, err)
	notifier.AssertNumberOfCalls(t, "Publish", 1)
}

func TestFreeTable_QueueNumbersStayMonotonicAfterArchive(t *testing.T) {
	svc, notifier, _ := newQueueService(t, 1)
	notifier.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	first := admit(t, svc, "c1")
	seat(t, svc, first, "A1")
	w1 := admit(t, svc, "c2")

	promoted, err := svc.FreeTable(ctx, FreeTableRequest{ShopID: "s1", TableNo: "A1", TableTypeID: "t1"})
	require.NoError(t, err)
	seat(t, svc, promoted, "A1")
	_, err = svc.FreeTable(ctx, FreeTableRequest{ShopID: "s1", TableNo: "A1", TableTypeID: "t1"})
	require.NoError(t, err)

	seat(t, svc, admit(t, svc, "c3"), "A1")
	next := admit(t, svc, "c4")
	assert.Greater(t, next.QueueNumber, w1.QueueNumber, "archived numbers are not reused")
}

func TestCheckNearby(t *testing.T) {
	svc, _, _ := newQueueService(t, 1)
	ctx := context.Background()

	seated := admit(t, svc, "c1")
	seat(t, svc, seated, "A1")
	var waiting []*models.Queue
	for i := 0; i < 4; i++ {
		waiting = append(waiting, admit(t, svc, fmt.Sprintf("w%d", i)))
	}

	first, err := svc.CheckNearby(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, first, 2, "limit 3 minus one seated entry")
	assert.Equal(t, waiting[0].ID, first[0].ID)
	assert.Equal(t, waiting[1].ID, first[1].ID)
	assert.True(t, first[0].ShouldNotify)

	second, err := svc.CheckNearby(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second), "check is read only")

	require.NoError(t, svc.MarkNotified(ctx, waiting[0].ID))
	third, err := svc.CheckNearby(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, third, 2)
	assert.Equal(t, waiting[1].ID, third[0].ID)
	assert.Equal(t, waiting[2].ID, third[1].ID)
}

func TestCheckNearby_ReadyFillsLimit(t *testing.T) {
	svc, _, _ := newQueueService(t, 3)
	for i := 0; i < 3; i++ {
		admit(t, svc, fmt.Sprintf("r%d", i))
	}
	admit(t, svc, "w1")

	got, err := svc.CheckNearby(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotifyShop(t *testing.T) {
	svc, notifier, _ := newQueueService(t, 1)
	ctx := context.Background()
	notifier.On("Publish", mock.Anything, "s1", events.EventFreeTable, models.TableFreedEvent{TableTypeID: "t1", TableTypeName: "type-t1"}).Return(nil).Once()

	require.NoError(t, svc.NotifyShop(ctx, "s1", "t1"))
	assert.ErrorIs(t, svc.NotifyShop(ctx, "", "t1"), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.NotifyShop(ctx, "s1", "missing"), domain.ErrNotFound)
	notifier.AssertExpectations(t)
}

func TestListQueues(t *testing.T) {
	svc, _, _ := newQueueService(t, 1)
	ctx := context.Background()
	admit(t, svc, "c1")
	admit(t, svc, "c2")

	all, err := svc.ListQueues(ctx, models.QueueFilter{ShopID: "s1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.ListQueues(ctx, models.QueueFilter{CustomerID: "c2"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "c2", mine[0].CustomerID)
}
