// Package ingest turns a batch of uploaded files into numbered photo records,
// rejecting content that is already in the library or repeated in the batch.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rpggio/facelapse/internal/capturedate"
	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/fingerprint"
	"github.com/rpggio/facelapse/internal/repository"
)

// DateResolver derives the capture time of an upload.
type DateResolver interface {
	Resolve(content io.Reader, sourceName string) (*time.Time, capturedate.Source)
}

var allowedExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp", ".tiff"}

// rejectedExtensions and rejectedTypes have no pure Go decoder.
var (
	rejectedExtensions = []string{".heic", ".heif"}
	rejectedTypes      = []string{"image/heic", "image/heic-sequence", "image/heif", "image/heif-sequence"}
)

// sniffLen is how much of each upload is inspected for its content type.
const sniffLen = 3072

// Service ingests upload batches.
type Service struct {
	store      photo.Store
	blobs      photo.BlobStore
	dates      DateResolver
	activities photo.ActivityRepository
	logger     *slog.Logger
}

// NewService creates a new ingest service.
func NewService(store photo.Store, blobs photo.BlobStore, dates DateResolver, activities photo.ActivityRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:      store,
		blobs:      blobs,
		dates:      dates,
		activities: activities,
		logger:     logger,
	}
}

// staged is an upload written to staging and fingerprinted.
type staged struct {
	index      int
	sourceName string
	key        string
	hash       string
	ext        string
	capturedAt *time.Time
	dateSource capturedate.Source
	firstCopy  int // index of the first upload with the same hash
}

// SubmitFiles ingests files from the local filesystem.
func (s *Service) SubmitFiles(ctx context.Context, paths []string) (*Result, error) {
	uploads := make([]Upload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeUploads(uploads)
			return nil, fmt.Errorf("opening %s: %w", p, err)
		}
		uploads = append(uploads, Upload{Name: filepath.Base(p), Body: f})
	}
	defer closeUploads(uploads)

	return s.Submit(ctx, uploads)
}

func closeUploads(uploads []Upload) {
	for _, u := range uploads {
		if c, ok := u.Body.(io.Closer); ok {
			c.Close()
		}
	}
}

// Submit ingests a batch. Accepted files are numbered after everything
// already in the library and committed in one transaction; duplicates are
// reported but not stored.
func (s *Service) Submit(ctx context.Context, uploads []Upload) (*Result, error) {
	if len(uploads) == 0 {
		return nil, ErrEmptyBatch
	}

	items := make([]staged, 0, len(uploads))
	cleanup := func() {
		for _, it := range items {
			s.deleteBlob(ctx, it.key)
		}
	}

	firstByHash := make(map[string]int)
	for i, u := range uploads {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}
		it, err := s.stage(ctx, i, u)
		if err != nil {
			cleanup()
			return nil, err
		}
		if first, seen := firstByHash[it.hash]; seen {
			it.firstCopy = first
			s.deleteBlob(ctx, it.key)
			it.key = ""
		} else {
			firstByHash[it.hash] = i
			it.firstCopy = i
			it.capturedAt, it.dateSource = s.resolveDate(ctx, it)
		}
		items = append(items, it)
	}

	outcomes := make([]Outcome, len(items))
	for i, it := range items {
		outcomes[i] = Outcome{Index: i, SourceName: it.sourceName}
	}

	var renamed []string
	err := s.store.InTx(ctx, func(repo photo.Repository) error {
		renamed = renamed[:0]
		var accepted []staged
		for _, it := range items {
			if it.firstCopy != it.index {
				continue
			}
			existing, err := repo.GetByContentHash(ctx, it.hash)
			switch {
			case err == nil:
				outcomes[it.index].Status = StatusDuplicateInLibrary
				outcomes[it.index].ExistingID = existing.ID
				outcomes[it.index].ExistingName = existing.DisplayName
			case errors.Is(err, repository.ErrNotFound):
				accepted = append(accepted, it)
			default:
				return err
			}
		}
		if len(accepted) == 0 {
			return nil
		}

		sortForNumbering(accepted)
		start, err := repo.ReserveDisplayNumbers(ctx, len(accepted))
		if err != nil {
			return err
		}

		for n, it := range accepted {
			displayName := fmt.Sprintf("%d%s", start+int64(n), it.ext)
			originalKey := photo.OriginalKey(displayName)
			if err := s.blobs.Rename(ctx, it.key, originalKey); err != nil {
				return fmt.Errorf("storing original: %w", err)
			}
			renamed = append(renamed, originalKey)

			p := &photo.Photo{
				DisplayName: displayName,
				SourceName:  it.sourceName,
				ContentHash: it.hash,
				CapturedAt:  it.capturedAt,
			}
			if err := repo.Create(ctx, p); err != nil {
				return err
			}
			outcomes[it.index].Status = StatusAccepted
			outcomes[it.index].Photo = p
			outcomes[it.index].DateSource = it.dateSource
		}
		return nil
	})
	if err != nil {
		for _, key := range renamed {
			s.deleteBlob(ctx, key)
		}
		cleanup()
		return nil, fmt.Errorf("committing batch: %w", err)
	}
	for _, it := range items {
		if it.key != "" && outcomes[it.index].Status != StatusAccepted {
			s.deleteBlob(ctx, it.key)
		}
	}

	result := &Result{BatchID: uuid.NewString(), Outcomes: outcomes}
	for i, it := range items {
		if it.firstCopy != it.index {
			first := outcomes[it.firstCopy]
			sibling := it.firstCopy
			switch first.Status {
			case StatusDuplicateInLibrary:
				outcomes[i].Status = StatusDuplicateInLibrary
				outcomes[i].ExistingID = first.ExistingID
				outcomes[i].ExistingName = first.ExistingName
			default:
				outcomes[i].Status = StatusDuplicateInBatch
				outcomes[i].SiblingIndex = &sibling
				outcomes[i].ExistingID = first.Photo.ID
				outcomes[i].ExistingName = first.Photo.DisplayName
			}
		}
		if outcomes[i].Status == StatusAccepted {
			result.Accepted++
		} else {
			result.Duplicates++
		}
	}

	s.logger.Info("ingested batch", "batch_id", result.BatchID, "accepted", result.Accepted, "duplicates", result.Duplicates)
	details, _ := json.Marshal(map[string]int{"accepted": result.Accepted, "duplicates": result.Duplicates})
	s.logActivity(ctx, &activity.ActivityEntry{
		BatchID:      result.BatchID,
		ActivityType: activity.TypeBatchIngested,
		Summary:      fmt.Sprintf("ingested %d of %d files", result.Accepted, len(uploads)),
		Details:      string(details),
	})
	return result, nil
}

// stage streams an upload into a staging blob while hashing it.
func (s *Service) stage(ctx context.Context, index int, u Upload) (staged, error) {
	name := u.Name
	if name == "" {
		name = "unknown"
	}
	if u.Body == nil {
		return staged{}, fmt.Errorf("%w: %s has no content", repository.ErrInvalidInput, name)
	}

	body := bufio.NewReaderSize(u.Body, sniffLen)
	head, err := body.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return staged{}, fmt.Errorf("reading %s: %w", name, err)
	}

	if rejected(name, head) {
		return staged{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	key := path.Join(photo.StagingDir, uuid.NewString())
	h := fingerprint.New()
	if err := s.blobs.Write(ctx, key, io.TeeReader(body, h)); err != nil {
		return staged{}, fmt.Errorf("staging %s: %w", name, err)
	}

	return staged{
		index:      index,
		sourceName: name,
		key:        key,
		hash:       fingerprint.Encode(h),
		ext:        extensionFor(name, head),
	}, nil
}

func (s *Service) resolveDate(ctx context.Context, it staged) (*time.Time, capturedate.Source) {
	if s.dates == nil {
		return nil, capturedate.SourceUnknown
	}
	rc, err := s.blobs.Open(ctx, it.key)
	if err != nil {
		s.logger.Warn("failed to reopen staged upload", "source", it.sourceName, "error", err)
		return s.dates.Resolve(nil, it.sourceName)
	}
	defer rc.Close()
	return s.dates.Resolve(rc, it.sourceName)
}

func (s *Service) deleteBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to remove blob", "key", key, "error", err)
	}
}

func (s *Service) logActivity(ctx context.Context, entry *activity.ActivityEntry) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, entry)
}

// SupportedFile reports whether name has an image extension the library
// stores as is.
func SupportedFile(name string) bool {
	return slices.Contains(allowedExtensions, strings.ToLower(filepath.Ext(name)))
}

func rejected(name string, head []byte) bool {
	if slices.Contains(rejectedExtensions, strings.ToLower(path.Ext(name))) {
		return true
	}
	if len(head) == 0 {
		return false
	}
	mt := mimetype.Detect(head)
	return slices.ContainsFunc(rejectedTypes, mt.Is)
}

// extensionFor keeps a known source extension, otherwise trusts the content.
func extensionFor(name string, head []byte) string {
	ext := strings.ToLower(path.Ext(name))
	if slices.Contains(allowedExtensions, ext) {
		return ext
	}
	if len(head) > 0 {
		sniffed := mimetype.Detect(head).Extension()
		if slices.Contains(allowedExtensions, sniffed) {
			return sniffed
		}
	}
	return ".jpg"
}

// sortForNumbering orders accepted uploads by capture time, then by the
// first number in the source name. Undated uploads go last.
func sortForNumbering(items []staged) {
	slices.SortStableFunc(items, func(a, b staged) int {
		switch {
		case a.capturedAt == nil && b.capturedAt != nil:
			return 1
		case a.capturedAt != nil && b.capturedAt == nil:
			return -1
		case a.capturedAt != nil && b.capturedAt != nil:
			if c := a.capturedAt.Compare(*b.capturedAt); c != 0 {
				return c
			}
		}
		return compareDigits(firstNumber(a.sourceName), firstNumber(b.sourceName))
	})
}

// firstNumber returns the first digit run of a file stem without leading
// zeros, or "0".
func firstNumber(name string) string {
	stem := strings.TrimSuffix(name, path.Ext(name))
	start := strings.IndexAny(stem, "0123456789")
	if start < 0 {
		return "0"
	}
	end := start
	for end < len(stem) && stem[end] >= '0' && stem[end] <= '9' {
		end++
	}
	digits := strings.TrimLeft(stem[start:end], "0")
	if digits == "" {
		return "0"
	}
	return digits
}

func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
