package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fathima-sithara/image-service/internal/encoder"
	models "github.com/fathima-sithara/image-service/internal/media"
	"github.com/fathima-sithara/image-service/internal/storage"
)

type AssetRepository interface {
	Insert(ctx context.Context, a *models.Asset) error
	GetByID(ctx context.Context, id string) (*models.Asset, error)
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, owner models.Owner) ([]*models.Asset, error)
}

type OwnerLookup interface {
	Exists(ctx context.Context, owner models.Owner) (bool, error)
}

type Encoder interface {
	Encode(ctx context.Context, src []byte) (encoder.Derivatives, error)
}

// Publisher announces asset lifecycle changes to the rest of the system.
type Publisher interface {
	AssetCreated(ctx context.Context, a *models.Asset) error
	AssetDeleted(ctx context.Context, a *models.Asset) error
}

type Observer interface {
	ObserveOperation(op string, err error, d time.Duration)
	ObserveRollback(op string)
}

// Upload is one file part of a create request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

const (
	defaultRollbackTimeout = 30 * time.Second
	defaultPublishTimeout  = 10 * time.Second
	ownerLockStripes       = 64
)

// MediaService is the only entry point that mutates both asset records and
// derivative blobs.
type MediaService struct {
	repo   AssetRepository
	owners OwnerLookup
	enc    Encoder
	store  storage.Store
	log    *zap.Logger

	events          Publisher
	obs             Observer
	rollbackTimeout time.Duration
	publishTimeout  time.Duration
	newID           func() string

	// creates hold an owner's stripe shared, a cascade holds it exclusively
	ownerLocks [ownerLockStripes]sync.RWMutex
}

type Option func(*MediaService)

func WithPublisher(p Publisher) Option {
	return func(s *MediaService) {
		if p != nil {
			s.events = p
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *MediaService) {
		if o != nil {
			s.obs = o
		}
	}
}

func WithRollbackTimeout(d time.Duration) Option {
	return func(s *MediaService) {
		if d > 0 {
			s.rollbackTimeout = d
		}
	}
}

// WithPublishTimeout bounds each lifecycle event publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *MediaService) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func NewMediaService(repo AssetRepository, owners OwnerLookup, enc Encoder, store storage.Store, log *zap.Logger, opts ...Option) *MediaService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &MediaService{
		repo:            repo,
		owners:          owners,
		enc:             enc,
		store:           store,
		log:             log,
		events:          nopPublisher{},
		obs:             nopObserver{},
		rollbackTimeout: defaultRollbackTimeout,
		publishTimeout:  defaultPublishTimeout,
		newID:           func() string { return ksuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores one upload for owner and returns the new asset id.
func (s *MediaService) Create(ctx context.Context, owner models.Owner, up Upload) (string, error) {
	ids, err := s.CreateBatch(ctx, owner, []Upload{up})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// CreateBatch stores every upload or none of them. All parts are checked and
// encoded before the first blob is written.
func (s *MediaService) CreateBatch(ctx context.Context, owner models.Owner, uploads []Upload) (ids []string, err error) {
	start := time.Now()
	defer func() { s.obs.ObserveOperation("create", err, time.Since(start)) }()

	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no file uploaded", models.ErrValidation)
	}
	if err := s.checkOwner(ctx, owner); err != nil {
		return nil, err
	}
	for _, up := range uploads {
		mt, err := detect(up.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", up.Filename, err)
		}
		if up.ContentType != "" && !mt.Is(up.ContentType) {
			s.log.Debug("declared content type differs from content",
				zap.String("filename", up.Filename),
				zap.String("declared", up.ContentType),
				zap.String("detected", mt.String()))
		}
	}

	mu := s.ownerLock(owner)
	mu.RLock()
	defer mu.RUnlock()

	encoded := make([]encoder.Derivatives, 0, len(uploads))
	for _, up := range uploads {
		d, err := s.enc.Encode(ctx, up.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", up.Filename, err)
		}
		encoded = append(encoded, d)
	}

	ids = make([]string, 0, len(encoded))
	for _, d := range encoded {
		id, err := s.persist(ctx, owner, d)
		if err != nil {
			s.undo(ctx, ids)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MediaService) checkOwner(ctx context.Context, owner models.Owner) error {
	if !owner.Kind.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidOwnerKind, owner.Kind)
	}
	if !models.ValidSegment(owner.ID) {
		return fmt.Errorf("%w: owner id %q", models.ErrValidation, owner.ID)
	}
	ok, err := s.owners.Exists(ctx, owner)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrOwnerNotFound, owner)
	}
	return nil
}

// Sniff accepts data whose content-derived media type is an image type.
func Sniff(data []byte) error {
	_, err := detect(data)
	return err
}

func detect(data []byte) (*mimetype.MIME, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", models.ErrUnsupportedMedia, mt.String())
	}
	return mt, nil
}

func (s *MediaService) ownerLock(owner models.Owner) *sync.RWMutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(owner.String()))
	return &s.ownerLocks[h.Sum32()%ownerLockStripes]
}

// persist writes the derivatives of a fresh asset then records it. Blob writes
// are detached from the request so a cancelled create still ends either fully
// written or rolled back.
func (s *MediaService) persist(ctx context.Context, owner models.Owner, d encoder.Derivatives) (string, error) {
	for _, size := range models.Sizes {
		if _, ok := d[size.Name]; !ok {
			return "", fmt.Errorf("%w: missing %s derivative", models.ErrEncode, size.Name)
		}
	}
	id := s.newID()
	wctx := context.WithoutCancel(ctx)

	var g errgroup.Group
	for _, size := range models.Sizes {
		loc, data := models.Location(owner, size, id), d[size.Name]
		g.Go(func() error { return s.store.Write(wctx, loc, data) })
	}
	if err := g.Wait(); err != nil {
		s.rollback(ctx, owner, id)
		if !errors.Is(err, models.ErrIO) {
			err = fmt.Errorf("%w: %w", models.ErrIO, err)
		}
		return "", err
	}

	a := &models.Asset{ID: id, OwnerKind: owner.Kind, OwnerID: owner.ID}
	if err := s.repo.Insert(ctx, a); err != nil {
		s.rollback(ctx, owner, id)
		return "", fmt.Errorf("save image %s: %w", id, err)
	}

	if err := s.publish(ctx, a, s.events.AssetCreated); err != nil {
		s.log.Warn("publish asset created failed", zap.String("asset_id", id), zap.Error(err))
	}
	s.log.Info("image created", zap.String("asset_id", id), zap.String("owner", owner.String()))
	return id, nil
}

// rollback removes every derivative location of id, written or not.
func (s *MediaService) rollback(ctx context.Context, owner models.Owner, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rollbackTimeout)
	defer cancel()
	s.obs.ObserveRollback("create")

	locs := models.Locations(owner, id)
	for _, loc := range locs {
		if err := s.store.Delete(ctx, loc); err != nil {
			s.log.Error("rollback delete failed", zap.String("location", loc), zap.Error(err))
		}
	}
	s.cleanAncestors(ctx, locs)
	s.log.Warn("image create rolled back", zap.String("asset_id", id), zap.String("owner", owner.String()))
}

// undo deletes assets already created earlier in a failed batch.
func (s *MediaService) undo(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rollbackTimeout)
	defer cancel()
	s.obs.ObserveRollback("create_batch")
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			s.log.Error("batch rollback delete failed", zap.String("asset_id", id), zap.Error(err))
		}
	}
}

// Delete removes the derivatives of id and then its record. Repeating a
// delete that stopped halfway is safe.
func (s *MediaService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.ObserveOperation("delete", err, time.Since(start)) }()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, a)
}

func (s *MediaService) remove(ctx context.Context, a *models.Asset) error {
	locs := models.Locations(a.Owner(), a.ID)
	for _, loc := range locs {
		if err := s.store.Delete(ctx, loc); err != nil {
			return err
		}
	}
	s.cleanAncestors(ctx, locs)

	if err := s.repo.Delete(ctx, a.ID); err != nil {
		return fmt.Errorf("delete image %s: %w", a.ID, err)
	}
	if err := s.publish(ctx, a, s.events.AssetDeleted); err != nil {
		s.log.Warn("publish asset deleted failed", zap.String("asset_id", a.ID), zap.Error(err))
	}
	s.log.Info("image deleted", zap.String("asset_id", a.ID), zap.String("owner", a.Owner().String()))
	return nil
}

// publish sends an event past request cancellation but never longer than
// publishTimeout.
func (s *MediaService) publish(ctx context.Context, a *models.Asset, send func(context.Context, *models.Asset) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	return send(ctx, a)
}

// cleanAncestors is advisory; failures are only logged.
func (s *MediaService) cleanAncestors(ctx context.Context, locs []string) {
	for _, loc := range locs {
		if err := s.store.DeleteEmptyAncestors(ctx, loc); err != nil {
			s.log.Debug("ancestor cleanup failed", zap.String("location", loc), zap.Error(err))
		}
	}
}

// CascadeOwnerDeleted removes every asset of owner and then the owner's
// directory. Called by the owner lifecycle before the owner record goes.
// Creates for the same owner in this process wait for it; other processes
// must stop creating for the owner first.
func (s *MediaService) CascadeOwnerDeleted(ctx context.Context, owner models.Owner) (err error) {
	start := time.Now()
	defer func() { s.obs.ObserveOperation("cascade", err, time.Since(start)) }()

	if !owner.Kind.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidOwnerKind, owner.Kind)
	}
	if !models.ValidSegment(owner.ID) {
		return fmt.Errorf("%w: owner id %q", models.ErrValidation, owner.ID)
	}

	mu := s.ownerLock(owner)
	mu.Lock()
	defer mu.Unlock()

	assets, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return fmt.Errorf("list images of %s: %w", owner, err)
	}
	for _, a := range assets {
		if err := s.remove(ctx, a); err != nil {
			return err
		}
	}
	if err := s.store.DeleteTree(ctx, models.OwnerDir(owner)); err != nil {
		return err
	}
	s.log.Info("owner images deleted", zap.String("owner", owner.String()), zap.Int("count", len(assets)))
	return nil
}

// ListByOwner returns the asset ids of owner, oldest first.
func (s *MediaService) ListByOwner(ctx context.Context, owner models.Owner) ([]string, error) {
	if !owner.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidOwnerKind, owner.Kind)
	}
	assets, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

type nopPublisher struct{}

func (nopPublisher) AssetCreated(context.Context, *models.Asset) error { return nil }
func (nopPublisher) AssetDeleted(context.Context, *models.Asset) error { return nil }

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, error, time.Duration) {}
func (nopObserver) ObserveRollback(string)                        {}
