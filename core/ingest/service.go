package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"EchoFM/catalog"
	"EchoFM/core/audio"
	"EchoFM/logger"
	"EchoFM/model"
	"EchoFM/storage"
)

var (
	// ErrNoFile is returned when the upload carries no payload bytes.
	ErrNoFile = errors.New("ingest: no file in upload")
	// ErrTooLarge is returned when the payload exceeds the configured limit.
	ErrTooLarge = errors.New("ingest: file exceeds size limit")
)

// localPather is implemented by stores that can hand out a real on-disk
// path, letting the converter work in place instead of copying the blob.
type localPather interface {
	LocalPath(name string) string
}

// durationProber is implemented by converters that can also report audio
// duration; used for logging only.
type durationProber interface {
	GetAudioDuration(ctx context.Context, inputFile string) (float32, error)
}

// Service accepts uploads, runs the legacy-format conversion when needed,
// and registers the resulting track as pending moderation.
type Service struct {
	blobs     storage.Store
	registry  *catalog.Registry
	converter audio.Converter
	maxBytes  int64
}

// NewService wires the ingestion pipeline. converter may be nil, in which
// case legacy uploads are registered unconverted.
func NewService(blobs storage.Store, registry *catalog.Registry, converter audio.Converter, maxBytes int64) *Service {
	return &Service{
		blobs:     blobs,
		registry:  registry,
		converter: converter,
		maxBytes:  maxBytes,
	}
}

// Submit ingests one upload: write the blob, convert if the format is
// legacy, insert the catalog entry. The returned track is always in state
// pending; nothing here makes it public.
//
// Conversion failure does not fail the upload. The original blob is kept
// and the track is registered unconverted, so an uploader never loses a
// contribution because the converter is unavailable.
func (s *Service) Submit(ctx context.Context, r io.Reader, size int64, originalName, mimeType, uploader string) (*model.Track, error) {
	if size == 0 {
		return nil, ErrNoFile
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, ErrTooLarge
	}

	name := storage.GenerateStorageName(originalName)

	body := r
	if s.maxBytes > 0 {
		// Belt over the handler's own cap: never write more than the limit.
		body = io.LimitReader(r, s.maxBytes+1)
	}

	written, err := s.blobs.Save(ctx, name, body)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload %s: %w", originalName, err)
	}
	if written == 0 {
		s.blobs.Delete(ctx, name)
		return nil, ErrNoFile
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		s.blobs.Delete(ctx, name)
		return nil, ErrTooLarge
	}

	storedName := name
	storedSize := written
	storedMime := mimeType
	converted := false

	if audio.IsLegacyFormat(originalName, mimeType) && s.converter != nil {
		mp3Name, mp3Size, convErr := s.convertBlob(ctx, name)
		if convErr != nil {
			logger.Warn("conversion failed, keeping original upload",
				logger.String("blob", name),
				logger.ErrorField(convErr))
		} else {
			storedName = mp3Name
			storedSize = mp3Size
			storedMime = "audio/mpeg"
			converted = true
		}
	}

	uploader = strings.TrimSpace(uploader)
	if uploader == "" {
		uploader = "anonymous"
	}

	track := &model.Track{
		ID:             storedName,
		DisplayName:    displayName(originalName),
		StoredFilename: storedName,
		Uploader:       uploader,
		SizeBytes:      storedSize,
		MimeType:       storedMime,
		Converted:      converted,
		State:          model.StatePending,
		UploadedAt:     time.Now().UTC(),
	}

	if err := s.registry.Insert(ctx, track); err != nil {
		// No partial track may stay visible: the blob goes with the failed insert.
		s.blobs.Delete(ctx, storedName)
		return nil, fmt.Errorf("failed to register track %s: %w", storedName, err)
	}

	s.probeDuration(storedName)

	logger.Info("upload ingested",
		logger.String("trackId", track.ID),
		logger.String("originalName", originalName),
		logger.String("uploader", track.Uploader),
		logger.Int64("sizeBytes", track.SizeBytes),
		logger.Bool("converted", track.Converted))
	return track, nil
}

// convertBlob runs the converter over the named blob and swaps the blob for
// the MP3 result. The original is deleted only after the converted blob is
// in place; a track never ends up with two blobs.
func (s *Service) convertBlob(ctx context.Context, name string) (string, int64, error) {
	localIn, cleanup, err := s.materialize(ctx, name)
	if err != nil {
		return "", 0, err
	}
	defer cleanup()

	outPath, err := s.converter.Convert(ctx, localIn)
	if err != nil {
		return "", 0, err
	}

	mp3Name := strings.TrimSuffix(name, filepath.Ext(name)) + ".mp3"

	var size int64
	if lp, ok := s.blobs.(localPather); ok && outPath == lp.LocalPath(mp3Name) {
		// The converter wrote straight into the store directory under the
		// final blob name.
		info, err := os.Stat(outPath)
		if err != nil {
			return "", 0, fmt.Errorf("failed to stat converted file %s: %w", outPath, err)
		}
		size = info.Size()
	} else {
		// The result landed elsewhere (a temp path, or a collision-avoiding
		// name for an upload already called .mp3): copy it under the final
		// name. Save replaces any blob under mp3Name atomically.
		out, err := os.Open(outPath)
		if err != nil {
			return "", 0, fmt.Errorf("failed to open converted file %s: %w", outPath, err)
		}
		size, err = s.blobs.Save(ctx, mp3Name, out)
		out.Close()
		os.Remove(outPath)
		if err != nil {
			return "", 0, fmt.Errorf("failed to store converted blob %s: %w", mp3Name, err)
		}
	}

	if mp3Name != name {
		if err := s.blobs.Delete(ctx, name); err != nil {
			logger.Warn("failed to delete pre-conversion blob",
				logger.String("blob", name),
				logger.ErrorField(err))
		}
	}
	return mp3Name, size, nil
}

// materialize returns a local path for the blob, copying it out to a temp
// file when the store has no local representation.
func (s *Service) materialize(ctx context.Context, name string) (string, func(), error) {
	if lp, ok := s.blobs.(localPather); ok {
		return lp.LocalPath(name), func() {}, nil
	}

	obj, _, err := s.blobs.Open(ctx, name)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open blob %s: %w", name, err)
	}
	defer obj.Close()

	tmp, err := os.CreateTemp("", "convert-*"+filepath.Ext(name))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, obj); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to copy blob %s to temp file: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	path := tmp.Name()
	return path, func() {
		os.Remove(path)
		// The converter writes its result next to the input, under the .mp3
		// name or the collision-avoiding .conv.mp3 name.
		base := strings.TrimSuffix(path, filepath.Ext(path))
		os.Remove(base + ".mp3")
		os.Remove(base + ".conv.mp3")
	}, nil
}

// probeDuration logs the track duration when the converter can report it.
// The probe runs off the request path; the prober applies its own deadline
// to the external binary.
func (s *Service) probeDuration(name string) {
	prober, ok := s.converter.(durationProber)
	if !ok {
		return
	}
	lp, ok := s.blobs.(localPather)
	if !ok {
		return
	}
	go func() {
		if duration, err := prober.GetAudioDuration(context.Background(), lp.LocalPath(name)); err == nil {
			logger.Debug("probed track duration",
				logger.String("blob", name),
				logger.Any("seconds", duration))
		}
	}()
}

// displayName strips the extension from the uploaded name for the catalog
// listing.
func displayName(originalName string) string {
	base := filepath.Base(filepath.ToSlash(originalName))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(name) == "" {
		return "Untitled Track"
	}
	return name
}
