package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"crf-system/internal/entities"
	"crf-system/internal/repositories"
	"crf-system/pkg/constants"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/eventbus"
	"crf-system/pkg/types"
)

// memDB - хранилище в памяти. Транзакции сериализуются txMu и откатываются
// восстановлением снимка, поэтому поведение близко к Postgres с блокировкой счетчика.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	crfs        map[uint64]*entities.CRF
	nextCRFID   uint64
	timeline    []entities.TimelineEntry
	attachments []entities.Attachment
	outbox      []entities.NotificationIntent
	sequences   map[[2]int]uint64

	users      map[uint64]*entities.User
	categories map[uint64]*entities.Category
	factors    map[uint64]*entities.Factor

	clock time.Time
}

func newMemDB() *memDB {
	return &memDB{
		crfs:       make(map[uint64]*entities.CRF),
		sequences:  make(map[[2]int]uint64),
		users:      make(map[uint64]*entities.User),
		categories: make(map[uint64]*entities.Category),
		factors:    make(map[uint64]*entities.Factor),
		clock:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Millisecond)
	return db.clock
}

type memSnapshot struct {
	crfs        map[uint64]*entities.CRF
	nextCRFID   uint64
	timeline    []entities.TimelineEntry
	attachments []entities.Attachment
	outbox      []entities.NotificationIntent
	sequences   map[[2]int]uint64
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := memSnapshot{
		crfs:        make(map[uint64]*entities.CRF, len(db.crfs)),
		nextCRFID:   db.nextCRFID,
		timeline:    append([]entities.TimelineEntry(nil), db.timeline...),
		attachments: append([]entities.Attachment(nil), db.attachments...),
		outbox:      append([]entities.NotificationIntent(nil), db.outbox...),
		sequences:   make(map[[2]int]uint64, len(db.sequences)),
	}
	for id, c := range db.crfs {
		s.crfs[id] = c.Clone()
	}
	for k, v := range db.sequences {
		s.sequences[k] = v
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.crfs = s.crfs
	db.nextCRFID = s.nextCRFID
	db.timeline = s.timeline
	db.attachments = s.attachments
	db.outbox = s.outbox
	db.sequences = s.sequences
}

func (db *memDB) addUser(id, dept uint64, fio string, roles ...string) *entities.User {
	u := &entities.User{ID: id, Fio: fio, DepartmentID: dept, NationalID: fmt.Sprintf("9001011%05d", id), Roles: roles}
	db.users[id] = u
	return u
}

func (db *memDB) timelineOf(crfID uint64) []entities.TimelineEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []entities.TimelineEntry
	for _, e := range db.timeline {
		if e.CRFID == crfID {
			out = append(out, e)
		}
	}
	return out
}

func (db *memDB) outboxOf(crfID uint64) []entities.NotificationIntent {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []entities.NotificationIntent
	for _, n := range db.outbox {
		if n.CRFID == crfID {
			out = append(out, n)
		}
	}
	return out
}

func (db *memDB) stored(crfID uint64) *entities.CRF {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.crfs[crfID]; ok {
		return c.Clone()
	}
	return nil
}

// --- TxManager ---

type fakeTxManager struct{ db *memDB }

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	m.db.txMu.Lock()
	defer m.db.txMu.Unlock()

	snap := m.db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.db.restore(snap)
			panic(p)
		}
		if err != nil {
			m.db.restore(snap)
		}
	}()
	return fn(nil)
}

// --- CRF ---

type fakeCRFRepo struct {
	db *memDB
	// beforeUpdate вызывается перед проверкой версии; так тесты имитируют гонку
	beforeUpdate   func(id uint64)
	lastVisibility sq.Sqlizer
}

func (r *fakeCRFRepo) CreateInTx(ctx context.Context, tx pgx.Tx, crf *entities.CRF) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.crfs {
		if c.CRFNumber == crf.CRFNumber {
			return fmt.Errorf("duplicate crf_number %s", crf.CRFNumber)
		}
	}
	r.db.nextCRFID++
	crf.ID = r.db.nextCRFID
	crf.Version = 1
	crf.CreatedAt = r.db.tick()
	crf.UpdatedAt = crf.CreatedAt
	r.db.crfs[crf.ID] = crf.Clone()
	return nil
}

func (r *fakeCRFRepo) find(id uint64) (*entities.CRF, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.crfs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := c.Clone()
	out.RequiresDeputyApproval = r.db.categories[c.CategoryID].RequiresDeputyApproval
	return out, nil
}

func (r *fakeCRFRepo) FindByID(ctx context.Context, id uint64) (*entities.CRF, error) {
	return r.find(id)
}

func (r *fakeCRFRepo) FindByIDInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.CRF, error) {
	return r.find(id)
}

func (r *fakeCRFRepo) UpdateInTx(ctx context.Context, tx pgx.Tx, crf *entities.CRF) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(crf.ID)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.crfs[crf.ID]
	if !ok || stored.Version != crf.Version {
		return apperrors.ErrPersistenceConflict
	}
	crf.Version++
	crf.UpdatedAt = r.db.tick()
	r.db.crfs[crf.ID] = crf.Clone()
	return nil
}

func (r *fakeCRFRepo) DeleteInTx(ctx context.Context, tx pgx.Tx, id uint64, version int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.crfs[id]
	if !ok || stored.Version != version {
		return apperrors.ErrPersistenceConflict
	}
	delete(r.db.crfs, id)
	// ON DELETE CASCADE
	keepT := r.db.timeline[:0:0]
	for _, e := range r.db.timeline {
		if e.CRFID != id {
			keepT = append(keepT, e)
		}
	}
	r.db.timeline = keepT
	keepA := r.db.attachments[:0:0]
	for _, a := range r.db.attachments {
		if a.CRFID != id {
			keepA = append(keepA, a)
		}
	}
	r.db.attachments = keepA
	return nil
}

// ListVisible не умеет исполнять SQL-предикат; он сохраняется для проверки,
// а видимость фильтруется по всем заявкам без условий.
func (r *fakeCRFRepo) ListVisible(ctx context.Context, visibility sq.Sqlizer, filter types.Filter) ([]repositories.CRFListItem, uint64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.lastVisibility = visibility
	var out []repositories.CRFListItem
	for _, c := range r.db.crfs {
		out = append(out, repositories.CRFListItem{CRF: *c.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, uint64(len(out)), nil
}

// --- Sequence ---

type fakeSequenceRepo struct {
	db *memDB
	// taken - номера, занятые в обход счетчика (например, импортом)
	taken map[string]bool
}

func (r *fakeSequenceRepo) LockScopeInTx(ctx context.Context, tx pgx.Tx, year, month int) (uint64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.sequences[[2]int{year, month}], nil
}

func (r *fakeSequenceRepo) MaxExistingSerialInTx(ctx context.Context, tx pgx.Tx, prefix string) (uint64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var maxSerial uint64
	for _, c := range r.db.crfs {
		if !strings.HasPrefix(c.CRFNumber, prefix) {
			continue
		}
		var serial uint64
		if _, err := fmt.Sscanf(strings.TrimPrefix(c.CRFNumber, prefix), "%d", &serial); err == nil && serial > maxSerial {
			maxSerial = serial
		}
	}
	return maxSerial, nil
}

func (r *fakeSequenceRepo) NumberExistsInTx(ctx context.Context, tx pgx.Tx, number string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.taken[number] {
		return true, nil
	}
	for _, c := range r.db.crfs {
		if c.CRFNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSequenceRepo) SaveCounterInTx(ctx context.Context, tx pgx.Tx, year, month int, serial uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.sequences[[2]int{year, month}] = serial
	return nil
}

// --- Timeline ---

type fakeTimelineRepo struct{ db *memDB }

func (r *fakeTimelineRepo) CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.TimelineEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entry.ID = uint64(len(r.db.timeline) + 1)
	entry.CreatedAt = r.db.tick()
	r.db.timeline = append(r.db.timeline, *entry)
	return nil
}

func (r *fakeTimelineRepo) FindByCRFID(ctx context.Context, crfID uint64) ([]entities.TimelineEntry, error) {
	return r.db.timelineOf(crfID), nil
}

// --- Attachments ---

type fakeAttachmentRepo struct{ db *memDB }

func (r *fakeAttachmentRepo) CreateInTx(ctx context.Context, tx pgx.Tx, a *entities.Attachment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a.ID = uint64(len(r.db.attachments) + 1)
	a.CreatedAt = r.db.tick()
	r.db.attachments = append(r.db.attachments, *a)
	return nil
}

func (r *fakeAttachmentRepo) FindAllByCRFID(ctx context.Context, crfID uint64) ([]entities.Attachment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]entities.Attachment, 0)
	for _, a := range r.db.attachments {
		if a.CRFID == crfID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) FindAllByCRFIDInTx(ctx context.Context, tx pgx.Tx, crfID uint64) ([]entities.Attachment, error) {
	return r.FindAllByCRFID(ctx, crfID)
}

// --- Outbox ---

type outboxUpdate struct {
	id          uint64
	status      string
	attempts    int
	lastError   string
	availableAt time.Time
}

type fakeOutboxRepo struct {
	db      *memDB
	updates []outboxUpdate
	due     []entities.NotificationIntent
}

func (r *fakeOutboxRepo) EnqueueInTx(ctx context.Context, tx pgx.Tx, intent *entities.NotificationIntent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	intent.ID = uint64(len(r.db.outbox) + 1)
	intent.CreatedAt = r.db.tick()
	intent.AvailableAt = intent.CreatedAt
	r.db.outbox = append(r.db.outbox, *intent)
	return nil
}

func (r *fakeOutboxRepo) MarkSent(ctx context.Context, id uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.updates = append(r.updates, outboxUpdate{id: id, status: constants.OutboxStatusSent})
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, id uint64, attempts int, lastError string, availableAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.updates = append(r.updates, outboxUpdate{id: id, status: constants.OutboxStatusFailed, attempts: attempts, lastError: lastError, availableAt: availableAt})
	return nil
}

func (r *fakeOutboxRepo) MarkDead(ctx context.Context, id uint64, attempts int, lastError string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.updates = append(r.updates, outboxUpdate{id: id, status: constants.OutboxStatusDead, attempts: attempts, lastError: lastError})
	return nil
}

func (r *fakeOutboxRepo) ClaimDue(ctx context.Context, now time.Time, staleBefore time.Time, limit int) ([]entities.NotificationIntent, error) {
	out := r.due
	r.due = nil
	return out, nil
}

func (r *fakeOutboxRepo) ListFailed(ctx context.Context, filter types.Filter) ([]entities.NotificationIntent, uint64, error) {
	return nil, 0, nil
}

// --- Reference / users ---

type fakeReferenceRepo struct{ db *memDB }

func (r *fakeReferenceRepo) FindDepartmentByCode(ctx context.Context, code string) (*entities.Department, error) {
	return nil, apperrors.ErrNotFound
}

func (r *fakeReferenceRepo) FindDepartmentByID(ctx context.Context, id uint64) (*entities.Department, error) {
	return &entities.Department{ID: id}, nil
}

func (r *fakeReferenceRepo) FindCategoryByID(ctx context.Context, id uint64) (*entities.Category, error) {
	if c, ok := r.db.categories[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeReferenceRepo) FindFactorByID(ctx context.Context, id uint64) (*entities.Factor, error) {
	if f, ok := r.db.factors[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeReferenceRepo) ListCategories(ctx context.Context) ([]entities.Category, error) {
	var out []entities.Category
	for _, c := range r.db.categories {
		out = append(out, *c)
	}
	return out, nil
}

type fakeUserRepo struct{ db *memDB }

func (r *fakeUserRepo) FindByID(ctx context.Context, id uint64) (*entities.User, error) {
	if u, ok := r.db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) FindByRole(ctx context.Context, role string, departmentID *uint64) ([]entities.User, error) {
	out := make([]entities.User, 0)
	for _, u := range r.db.users {
		if !u.HasRole(role) {
			continue
		}
		if departmentID != nil && u.DepartmentID != *departmentID {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Files / events ---

type fakeFileStorage struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
	failOn  string
}

func (s *fakeFileStorage) Save(file io.Reader, name string, prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.failOn {
		return "", fmt.Errorf("disk full")
	}
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	path := fmt.Sprintf("%s/%d-%s", prefix, len(s.saved)+1, name)
	s.saved = append(s.saved, path)
	return path, nil
}

func (s *fakeFileStorage) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, path)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *fakePublisher) Publish(ctx context.Context, event eventbus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
