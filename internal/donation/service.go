// Package donation implements the product donation lifecycle: listing a
// product, scheduling its pickup and concluding the donation.
package donation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/podari/internal/apperr"
	"github.com/erazemk/podari/internal/metrics"
	"github.com/erazemk/podari/internal/model"
)

// Pagination defaults used when List is called with zero values.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// Confirmation messages returned by the lifecycle transitions.
const (
	MsgScheduled = "pickup scheduled, contact the donor to arrange it"
	MsgConcluded = "donation concluded"
)

// Service enforces the product lifecycle on top of a Repository.
type Service struct {
	repo     Repository
	identity Identity
	tracer   trace.Tracer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithMetrics sets the collectors updated by each operation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the time source used to stamp donations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(repo Repository, identity Identity, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		identity: identity,
		tracer:   otel.Tracer("github.com/erazemk/podari/internal/donation"),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create lists a new product owned by the caller.
func (s *Service) Create(ctx context.Context, callerID string, in model.ProductInput) (_ *model.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "DonationService.Create")
	defer s.finish(span, "create", time.Now(), &err)

	if err := validateCreate(in); err != nil {
		return nil, err
	}

	owner, err := s.resolve(ctx, callerID)
	if err != nil {
		return nil, err
	}

	p := &model.Product{
		Name:        in.Name,
		Description: in.Description,
		State:       in.State,
		PurchasedAt: in.PurchasedAt,
		Images:      append([]string(nil), in.Images...),
		OwnerID:     owner.ID,
		Available:   true,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, storageErr(err, "creating product")
	}
	p.Owner = owner.Profile()

	span.SetAttributes(attribute.String("product.id", p.ID))
	s.metrics.IncrementTransition("listed")
	s.logger.Info("product listed", "product", p.ID, "owner", owner.ID)
	return p, nil
}

// List returns one page of products, newest first. Zero page or pageSize
// select the defaults; negative values are rejected.
func (s *Service) List(ctx context.Context, page, pageSize int) (_ []model.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "DonationService.List")
	defer s.finish(span, "list", time.Now(), &err)

	if page < 0 || pageSize < 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, msgInvalidPage)
	}
	if page == 0 {
		page = DefaultPage
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	span.SetAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize))

	// No row can sit at an offset past math.MaxInt.
	if page-1 > math.MaxInt/pageSize {
		return []model.Product{}, nil
	}

	products, err := s.repo.FindPage(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, storageErr(err, "listing products")
	}
	return nonNil(products), nil
}

// Get returns a product with its owner and receiver expanded.
func (s *Service) Get(ctx context.Context, id string) (_ *model.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "DonationService.Get", trace.WithAttributes(attribute.String("product.id", id)))
	defer s.finish(span, "get", time.Now(), &err)

	return s.load(ctx, id, true)
}

// Update replaces the five business fields of a product. Ownership and
// lifecycle state are never changed.
func (s *Service) Update(ctx context.Context, id string, in model.ProductInput) (_ *model.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "DonationService.Update", trace.WithAttributes(attribute.String("product.id", id)))
	defer s.finish(span, "update", time.Now(), &err)

	if id, err = parseID(id); err != nil {
		return nil, err
	}
	if err := validateReplace(in); err != nil {
		return nil, err
	}

	p, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}

	p.Name = in.Name
	p.Description = in.Description
	p.State = in.State
	p.PurchasedAt = in.PurchasedAt
	p.Images = append([]string{}, in.Images...)

	ok, err := s.repo.Save(ctx, p)
	if err != nil {
		return nil, storageErr(err, "updating product")
	}
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "product not found")
	}

	// Lifecycle fields may have moved since the load.
	updated, err := s.load(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product updated", "product", id)
	return updated, nil
}

// Delete removes a product regardless of its lifecycle state.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "DonationService.Delete", trace.WithAttributes(attribute.String("product.id", id)))
	defer s.finish(span, "delete", time.Now(), &err)

	if id, err = parseID(id); err != nil {
		return err
	}

	ok, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return storageErr(err, "deleting product")
	}
	if !ok {
		return apperr.New(apperr.CodeNotFound, "product not found")
	}

	s.metrics.IncrementTransition("deleted")
	s.logger.Info("product deleted", "product", id)
	return nil
}

// ListByOwner returns every product listed by ownerID. An empty ownerID
// matches nothing.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) (_ []model.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "DonationService.ListByOwner", trace.WithAttributes(attribute.String("owner.id", ownerID)))
	defer s.finish(span, "list_by_owner", time.Now(), &err)

	if ownerID == "" {
		return []model.Product{}, nil
	}

	products, err := s.repo.FindAllMatching(ctx, model.ProductFilter{OwnerID: ownerID})
	if err != nil {
		return nil, storageErr(err, "listing products by owner")
	}
	return nonNil(products), nil
}

// ListByReceiver returns every product assigned to receiverID. No matches,
// including an empty receiverID, is an empty result, not an error.
func (s *Service) ListByReceiver(ctx context.Context, receiverID string) (_ []model.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "DonationService.ListByReceiver", trace.WithAttributes(attribute.String("receiver.id", receiverID)))
	defer s.finish(span, "list_by_receiver", time.Now(), &err)

	if receiverID == "" {
		return []model.Product{}, nil
	}

	products, err := s.repo.FindAllMatching(ctx, model.ProductFilter{ReceiverID: receiverID})
	if err != nil {
		return nil, storageErr(err, "listing products by receiver")
	}
	return nonNil(products), nil
}

// Schedule assigns the caller as receiver of an available product. Only the
// owner may schedule.
func (s *Service) Schedule(ctx context.Context, productID, callerID string) (_ string, err error) {
	ctx, span := s.tracer.Start(ctx, "DonationService.Schedule", trace.WithAttributes(attribute.String("product.id", productID)))
	defer s.finish(span, "schedule", time.Now(), &err)

	p, caller, err := s.authorizeTransition(ctx, productID, callerID, "not available for scheduling")
	if err != nil {
		return "", err
	}

	ok, err := s.repo.AssignReceiver(ctx, p.ID, p.OwnerID, caller.ID)
	if err != nil {
		return "", storageErr(err, "scheduling pickup")
	}
	if !ok {
		return "", s.lostRace(ctx, p.ID, "not available for scheduling")
	}

	s.metrics.IncrementTransition("scheduled")
	s.logger.Info("pickup scheduled", "product", p.ID, "receiver", caller.ID)
	return MsgScheduled, nil
}

// ConcludeDonation marks an available product as donated. Only the owner
// may conclude, and only once.
func (s *Service) ConcludeDonation(ctx context.Context, productID, callerID string) (_ string, err error) {
	ctx, span := s.tracer.Start(ctx, "DonationService.ConcludeDonation", trace.WithAttributes(attribute.String("product.id", productID)))
	defer s.finish(span, "conclude", time.Now(), &err)

	p, _, err := s.authorizeTransition(ctx, productID, callerID, "not available for donation")
	if err != nil {
		return "", err
	}

	ok, err := s.repo.MarkDonated(ctx, p.ID, p.OwnerID, s.now())
	if err != nil {
		return "", storageErr(err, "concluding donation")
	}
	if !ok {
		return "", s.lostRace(ctx, p.ID, "not available for donation")
	}

	s.metrics.IncrementTransition("donated")
	s.logger.Info("donation concluded", "product", p.ID, "owner", p.OwnerID)
	return MsgConcluded, nil
}

// authorizeTransition runs the guards shared by Schedule and
// ConcludeDonation in order: id format, existence, availability, caller
// identity, ownership.
func (s *Service) authorizeTransition(ctx context.Context, productID, callerID, unavailable string) (*model.Product, *model.User, error) {
	id, err := parseID(productID)
	if err != nil {
		return nil, nil, err
	}

	p, err := s.load(ctx, id, false)
	if err != nil {
		return nil, nil, err
	}
	if !p.Available {
		return nil, nil, apperr.New(apperr.CodeConflict, "product is "+unavailable)
	}

	caller, err := s.resolve(ctx, callerID)
	if err != nil {
		return nil, nil, err
	}
	if caller.ID != p.OwnerID {
		return nil, nil, apperr.New(apperr.CodeForbidden, "only the owner can do this")
	}
	return p, caller, nil
}

// lostRace explains why a conditional transition affected no rows.
func (s *Service) lostRace(ctx context.Context, id, unavailable string) error {
	current, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		return storageErr(err, "reloading product")
	}
	if current == nil {
		return apperr.New(apperr.CodeNotFound, "product not found")
	}
	return apperr.New(apperr.CodeConflict, "product is "+unavailable)
}

func (s *Service) load(ctx context.Context, id string, expand bool) (*model.Product, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.FindByID(ctx, id, expand)
	if err != nil {
		return nil, storageErr(err, "loading product")
	}
	if p == nil {
		return nil, apperr.New(apperr.CodeNotFound, "product not found")
	}
	return p, nil
}

func (s *Service) resolve(ctx context.Context, callerID string) (*model.User, error) {
	user, err := s.identity.Resolve(ctx, callerID)
	if err != nil {
		var coded *apperr.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, apperr.Wrap(err, apperr.CodeUnauthenticated, "authentication failed")
	}
	if user == nil {
		return nil, apperr.New(apperr.CodeUnauthenticated, "authentication failed")
	}
	return user, nil
}

// finish closes an operation span and records its outcome.
func (s *Service) finish(span trace.Span, op string, start time.Time, errp *error) {
	defer span.End()

	outcome := "ok"
	if err := *errp; err != nil {
		code := apperr.CodeOf(err)
		outcome = string(code)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if code == apperr.CodeStorage {
			s.logger.Error("product operation failed", "op", op, "error", err)
		} else {
			s.logger.Debug("product operation rejected", "op", op, "code", code, "error", err)
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	s.metrics.ObserveOperation(op, outcome, time.Since(start))
}

func storageErr(err error, msg string) error {
	return apperr.Wrap(err, apperr.CodeStorage, msg)
}

func nonNil(products []model.Product) []model.Product {
	if products == nil {
		return []model.Product{}
	}
	return products
}
