package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/aquanet/apiserver/internal/logger"
	"github.com/aquanet/apiserver/internal/storage"
	"github.com/aquanet/apiserver/types"
)

// ComplaintService manages complaints, their categories and photos.
type ComplaintService struct {
	*Resource[types.Complaint]
	Categories *Resource[types.ComplaintCategory]

	users   ExistsFunc
	objects storage.ObjectStorage
	log     *slog.Logger
	now     func() time.Time
}

// NewComplaintService builds the service. objects may be nil, in which case
// photo uploads fail with ErrUnavailable.
func NewComplaintService(
	complaints Repository[types.Complaint],
	categories Repository[types.ComplaintCategory],
	users ExistsFunc,
	objects storage.ObjectStorage,
	log *slog.Logger,
) *ComplaintService {
	return &ComplaintService{
		Resource:   NewResource("complaint", complaints),
		Categories: NewResource("complaint category", categories),
		users:      users,
		objects:    objects,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Assign hands complaint id to user assignee. A pending complaint moves to
// in_progress.
func (s *ComplaintService) Assign(ctx context.Context, id, assignee int) (types.Complaint, error) {
	complaint, err := s.Get(ctx, id)
	if err != nil {
		return types.Complaint{}, err
	}
	ok, err := s.users(ctx, assignee)
	if err != nil {
		return types.Complaint{}, fmt.Errorf("services.ComplaintService.Assign: %w", err)
	}
	if !ok {
		return types.Complaint{}, notFound("user", assignee)
	}

	fields := map[string]any{"assigned_to": assignee}
	if complaint.Status == types.ComplaintPending {
		fields["status"] = types.ComplaintInProgress
	}
	return s.Patch(ctx, id, fields)
}

// Resolve marks complaint id resolved and stamps resolved_at.
func (s *ComplaintService) Resolve(ctx context.Context, id int) (types.Complaint, error) {
	return s.Patch(ctx, id, map[string]any{
		"status":      types.ComplaintResolved,
		"resolved_at": s.now(),
	})
}

// Photo is an uploaded complaint photo.
type Photo struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachPhoto stores p in object storage and records its key as the
// complaint's photo_url. A previous photo is removed.
func (s *ComplaintService) AttachPhoto(ctx context.Context, id int, p Photo) (types.Complaint, error) {
	const op = "services.ComplaintService.AttachPhoto"

	if s.objects == nil {
		return types.Complaint{}, fmt.Errorf("%s: object storage: %w", op, ErrUnavailable)
	}
	complaint, err := s.Get(ctx, id)
	if err != nil {
		return types.Complaint{}, err
	}

	key := storage.ObjectKey("complaints/"+strconv.Itoa(id), p.Filename)
	if err := s.objects.Put(ctx, key, p.Body, p.Size, p.ContentType); err != nil {
		return types.Complaint{}, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.Patch(ctx, id, map[string]any{"photo_url": key})
	if err != nil {
		s.removeObject(ctx, key)
		return types.Complaint{}, err
	}
	if complaint.PhotoURL != nil && *complaint.PhotoURL != "" {
		s.removeObject(ctx, *complaint.PhotoURL)
	}
	return updated, nil
}

// OpenPhoto streams the stored photo of complaint id.
func (s *ComplaintService) OpenPhoto(ctx context.Context, id int) (io.ReadCloser, error) {
	if s.objects == nil {
		return nil, fmt.Errorf("services.ComplaintService.OpenPhoto: object storage: %w", ErrUnavailable)
	}
	complaint, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if complaint.PhotoURL == nil || *complaint.PhotoURL == "" {
		return nil, notFound("photo for complaint", id)
	}
	r, err := s.objects.Get(ctx, *complaint.PhotoURL)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, notFound("photo for complaint", id)
	}
	return r, err
}

func (s *ComplaintService) removeObject(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Warn("failed to remove complaint photo",
			slog.String("op", "services.ComplaintService.removeObject"),
			slog.String("key", key),
			logger.Err(err),
		)
	}
}
