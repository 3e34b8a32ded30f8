package repositories

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crf-system/internal/entities"
	"crf-system/migrations"
	"crf-system/pkg/constants"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/types"
)

var testPool *pgxpool.Pool

// TestMain поднимает соединение с тестовой БД, если задан CRF_TEST_DATABASE_URL.
func TestMain(m *testing.M) {
	dsn := os.Getenv("CRF_TEST_DATABASE_URL")
	if dsn != "" {
		var err error
		testPool, err = pgxpool.New(context.Background(), dsn)
		if err != nil {
			panic(err)
		}
		if err = migrations.Up(context.Background(), testPool); err != nil {
			panic(err)
		}
	}
	code := m.Run()
	if testPool != nil {
		testPool.Close()
	}
	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("CRF_TEST_DATABASE_URL не задан")
	}
}

func cleanupTables(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `TRUNCATE TABLE crf_notification_outbox, crf_attachments,
		crf_timeline, crf_sequences, crfs, factors, categories, user_roles, users, roles, departments
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err, "Не удалось очистить таблицы")
}

type seeded struct {
	deptID     uint64
	categoryID uint64
	userID     uint64
}

func seedData(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	var s seeded
	require.NoError(t, testPool.QueryRow(ctx,
		`INSERT INTO departments (code, name) VALUES ('FIN', 'Финансы') RETURNING id`).Scan(&s.deptID))
	require.NoError(t, testPool.QueryRow(ctx,
		`INSERT INTO categories (name) VALUES ('Программное обеспечение') RETURNING id`).Scan(&s.categoryID))
	require.NoError(t, testPool.QueryRow(ctx,
		`INSERT INTO users (fio, email, department_id) VALUES ('Тестовый Заявитель', 'req@test.local', $1) RETURNING id`,
		s.deptID).Scan(&s.userID))

	var roleID uint64
	require.NoError(t, testPool.QueryRow(ctx,
		`INSERT INTO roles (code, name) VALUES ($1, 'HOU') RETURNING id`, constants.RoleDeptHead).Scan(&roleID))
	_, err := testPool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, s.userID, roleID)
	require.NoError(t, err)
	return s
}

func newCRF(s seeded, number string) *entities.CRF {
	return &entities.CRF{
		CRFNumber:     number,
		RequesterID:   s.userID,
		RequesterName: "Тестовый Заявитель",
		DepartmentID:  s.deptID,
		CategoryID:    s.categoryID,
		Issue:         "Не работает принтер",
		Status:        constants.StatusCreated,
	}
}

func TestCRFRepository_Integration_VersionConflict(t *testing.T) {
	requireDB(t)
	cleanupTables(t)
	s := seedData(t)
	ctx := context.Background()
	repo := NewCRFRepository(testPool, zap.NewNop())
	txm := NewTxManager(testPool)

	crf := newCRF(s, "2026/10/001")
	require.NoError(t, txm.RunInTransaction(ctx, func(tx pgx.Tx) error {
		return repo.CreateInTx(ctx, tx, crf)
	}))
	assert.Equal(t, 1, crf.Version)

	stale := crf.Clone()

	crf.Status = constants.StatusApprovedByDeptHead
	require.NoError(t, txm.RunInTransaction(ctx, func(tx pgx.Tx) error {
		return repo.UpdateInTx(ctx, tx, crf)
	}))
	assert.Equal(t, 2, crf.Version)

	stale.Status = constants.StatusRejectedByDeptHead
	err := txm.RunInTransaction(ctx, func(tx pgx.Tx) error {
		return repo.UpdateInTx(ctx, tx, stale)
	})
	assert.ErrorIs(t, err, apperrors.ErrPersistenceConflict)

	got, err := repo.FindByID(ctx, crf.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusApprovedByDeptHead, got.Status)
}

func TestCRFRepository_Integration_DuplicateNumberRejected(t *testing.T) {
	requireDB(t)
	cleanupTables(t)
	s := seedData(t)
	ctx := context.Background()
	repo := NewCRFRepository(testPool, zap.NewNop())
	txm := NewTxManager(testPool)

	require.NoError(t, txm.RunInTransaction(ctx, func(tx pgx.Tx) error {
		return repo.CreateInTx(ctx, tx, newCRF(s, "2026/10/001"))
	}))
	err := txm.RunInTransaction(ctx, func(tx pgx.Tx) error {
		return repo.CreateInTx(ctx, tx, newCRF(s, "2026/10/001"))
	})
	assert.Error(t, err)
}

func TestSequenceRepository_Integration_ConcurrentLock(t *testing.T) {
	requireDB(t)
	cleanupTables(t)
	seedData(t)
	ctx := context.Background()
	repo := NewSequenceRepository(testPool, zap.NewNop())
	txm := NewTxManager(testPool)

	const workers = 8
	var wg sync.WaitGroup
	serials := make(chan uint64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := txm.RunInTransaction(ctx, func(tx pgx.Tx) error {
				last, err := repo.LockScopeInTx(ctx, tx, 2026, 10)
				if err != nil {
					return err
				}
				serials <- last + 1
				return repo.SaveCounterInTx(ctx, tx, 2026, 10, last+1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	close(serials)

	seen := map[uint64]bool{}
	for s := range serials {
		assert.False(t, seen[s], "серийный номер %d выдан дважды", s)
		seen[s] = true
	}
	assert.Len(t, seen, workers)
}

func TestSequenceRepository_Integration_MaxExistingSerial(t *testing.T) {
	requireDB(t)
	cleanupTables(t)
	s := seedData(t)
	ctx := context.Background()
	crfRepo := NewCRFRepository(testPool, zap.NewNop())
	seqRepo := NewSequenceRepository(testPool, zap.NewNop())
	txm := NewTxManager(testPool)

	require.NoError(t, txm.RunInTransaction(ctx, func(tx pgx.Tx) error {
		for _, n := range []string{"2026/10/004", "2026/10/012", "2026/09/099"} {
			if err := crfRepo.CreateInTx(ctx, tx, newCRF(s, n)); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, txm.RunInTransaction(ctx, func(tx pgx.Tx) error {
		maxSerial, err := seqRepo.MaxExistingSerialInTx(ctx, tx, "2026/10/")
		require.NoError(t, err)
		assert.Equal(t, uint64(12), maxSerial)

		exists, err := seqRepo.NumberExistsInTx(ctx, tx, "2026/09/099")
		require.NoError(t, err)
		assert.True(t, exists)
		return nil
	}))
}

func TestTimelineRepository_Integration_OrderAndImmutability(t *testing.T) {
	requireDB(t)
	cleanupTables(t)
	s := seedData(t)
	ctx := context.Background()
	crfRepo := NewCRFRepository(testPool, zap.NewNop())
	timelineRepo := NewTimelineRepository(testPool, zap.NewNop())
	txm := NewTxManager(testPool)

	crf := newCRF(s, "2026/10/001")
	txID := uuid.New()
	require.NoError(t, txm.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if err := crfRepo.CreateInTx(ctx, tx, crf); err != nil {
			return err
		}
		for _, st := range []constants.CRFStatus{constants.StatusCreated, constants.StatusApprovedByDeptHead} {
			actor := s.userID
			entry := &entities.TimelineEntry{
				CRFID: crf.ID, Status: st, StatusLabel: st.Label(),
				ActionKind: constants.TimelineStatusChange, ActorID: &actor, TxID: &txID,
			}
			if err := timelineRepo.CreateInTx(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	}))

	entries, err := timelineRepo.FindByCRFID(ctx, crf.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, constants.StatusCreated, entries[0].Status)
	assert.Equal(t, constants.StatusApprovedByDeptHead, entries[1].Status)
	require.NotNil(t, entries[0].ActorName)
	assert.Equal(t, "Тестовый Заявитель", *entries[0].ActorName)

	_, err = testPool.Exec(ctx, `UPDATE crf_timeline SET remark = 'x' WHERE id = $1`, entries[0].ID)
	assert.Error(t, err)
}

func TestUserRepository_Integration_FindByRole(t *testing.T) {
	requireDB(t)
	cleanupTables(t)
	s := seedData(t)
	ctx := context.Background()
	repo := NewUserRepository(testPool, zap.NewNop())

	users, err := repo.FindByRole(ctx, constants.RoleDeptHead, &s.deptID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, []string{constants.RoleDeptHead}, users[0].Roles)

	other := s.deptID + 100
	users, err = repo.FindByRole(ctx, constants.RoleDeptHead, &other)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = repo.FindByID(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOutboxRepository_Integration_ClaimAndList(t *testing.T) {
	requireDB(t)
	cleanupTables(t)
	s := seedData(t)
	ctx := context.Background()
	repo := NewOutboxRepository(testPool, zap.NewNop())
	txm := NewTxManager(testPool)

	intent := &entities.NotificationIntent{
		EventID:     uuid.New(),
		CRFID:       1,
		TemplateKey: "crf.transitioned",
		Recipients:  []entities.RecipientQuery{{Role: constants.RoleDeptHead, DepartmentID: &s.deptID}},
		Context:     map[string]interface{}{"crf_number": "2026/10/001"},
	}
	require.NoError(t, txm.RunInTransaction(ctx, func(tx pgx.Tx) error {
		return repo.EnqueueInTx(ctx, tx, intent)
	}))

	// свежий PENDING принадлежит слушателю
	claimed, err := repo.ClaimDue(ctx, time.Now(), time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	require.NoError(t, repo.MarkFailed(ctx, intent.ID, 1, "telegram недоступен", time.Now().Add(-time.Second)))
	claimed, err = repo.ClaimDue(ctx, time.Now(), time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, intent.EventID, claimed[0].EventID)
	require.Len(t, claimed[0].Recipients, 1)
	assert.Equal(t, constants.RoleDeptHead, claimed[0].Recipients[0].Role)

	// повторный захват не отдает уже захваченную строку
	again, err := repo.ClaimDue(ctx, time.Now(), time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, repo.MarkDead(ctx, intent.ID, 8, "telegram недоступен"))
	failed, total, err := repo.ListFailed(ctx, types.Filter{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	assert.Equal(t, constants.OutboxStatusDead, failed[0].Status)
}
