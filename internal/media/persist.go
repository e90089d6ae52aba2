package media

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
	"github.com/tiagomennab/ensaio-fotos-sub001/internal/storage"
)

// ThumbnailMaker derives a thumbnail from an image.
type ThumbnailMaker interface {
	Make(src []byte) ([]byte, error)
}

// Options configures a Persister.
type Options struct {
	Fetcher       *Fetcher
	Store         storage.ObjectStore
	Thumbnails    ThumbnailMaker
	ImagePolicy   Policy
	VideoPolicy   Policy
	UploadTimeout time.Duration
	Logger        zerolog.Logger
}

// Persister copies provider outputs into the object store.
type Persister struct {
	fetcher       *Fetcher
	store         storage.ObjectStore
	thumbs        ThumbnailMaker
	imagePolicy   Policy
	videoPolicy   Policy
	uploadTimeout time.Duration
	logger        zerolog.Logger
}

func NewPersister(opts Options) *Persister {
	p := &Persister{
		fetcher:       opts.Fetcher,
		store:         opts.Store,
		thumbs:        opts.Thumbnails,
		imagePolicy:   opts.ImagePolicy,
		videoPolicy:   opts.VideoPolicy,
		uploadTimeout: opts.UploadTimeout,
		logger:        opts.Logger.With().Str("component", "media").Logger(),
	}
	if p.fetcher == nil {
		p.fetcher = NewFetcher(nil)
	}
	if p.imagePolicy.Timeout == 0 {
		p.imagePolicy = ImagePolicy
	}
	if p.videoPolicy.Timeout == 0 {
		p.videoPolicy = VideoPolicy
	}
	if p.uploadTimeout <= 0 {
		p.uploadTimeout = time.Minute
	}
	return p
}

// Request names the outputs of one job.
type Request struct {
	SourceURLs []string
	JobID      string
	OwnerID    string
	Category   storage.Category
}

// ItemFailure records why one source was skipped.
type ItemFailure struct {
	Index     int
	SourceURL string
	Stage     string
	Err       error
}

// Result lists stored objects. ThumbnailURLs is index-aligned with
// PermanentURLs; an entry is empty when no thumbnail exists for that item.
type Result struct {
	PermanentURLs []string
	ThumbnailURLs []string
	Failures      []ItemFailure
	Attempted     int
}

// OK reports whether at least one item was stored.
func (r Result) OK() bool { return len(r.PermanentURLs) > 0 }

// Err summarizes a result that stored nothing.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	if len(r.Failures) == 0 {
		return domain.ErrNoOutput
	}
	last := r.Failures[len(r.Failures)-1]
	return fmt.Errorf("%w: %d of %d items failed, last at %s: %v", domain.ErrNothingPersisted, len(r.Failures), r.Attempted, last.Stage, last.Err)
}

// Persist downloads each source sequentially, uploads it under the canonical
// key and, for images, a thumbnail. Items that fail are logged and skipped.
// Sources are never deleted.
func (p *Persister) Persist(ctx context.Context, req Request) Result {
	var res Result
	log := p.logger.With().Str("job_id", req.JobID).Str("owner_id", req.OwnerID).Str("category", string(req.Category)).Logger()

	policy := p.imagePolicy
	if req.Category == storage.CategoryVideos {
		policy = p.videoPolicy
	}

	for i, src := range req.SourceURLs {
		if src == "" {
			continue
		}
		res.Attempted++
		permanent, thumb, failure := p.persistOne(ctx, req, i, src, policy, log)
		if failure != nil {
			log.Warn().Err(failure.Err).Int("index", i).Str("stage", failure.Stage).Str("source_url", src).Msg("media item skipped")
			res.Failures = append(res.Failures, *failure)
			continue
		}
		res.PermanentURLs = append(res.PermanentURLs, permanent)
		res.ThumbnailURLs = append(res.ThumbnailURLs, thumb)
	}

	if res.OK() {
		log.Info().Int("stored", len(res.PermanentURLs)).Int("failed", len(res.Failures)).Msg("media persisted")
	}
	return res
}

func (p *Persister) persistOne(ctx context.Context, req Request, index int, src string, policy Policy, log zerolog.Logger) (string, string, *ItemFailure) {
	fail := func(stage string, err error) (string, string, *ItemFailure) {
		return "", "", &ItemFailure{Index: index, SourceURL: src, Stage: stage, Err: err}
	}

	dl, err := p.fetcher.Fetch(ctx, src, policy)
	if err != nil {
		return fail("download", err)
	}
	key, err := storage.BuildKey(req.OwnerID, req.Category, storage.ItemFilename(req.JobID, index, storage.ExtensionForContentType(dl.ContentType)))
	if err != nil {
		return fail("key", err)
	}
	permanent, err := p.upload(ctx, key, dl.Data, dl.ContentType)
	if err != nil {
		return fail("upload", err)
	}

	if !dl.IsImage() || p.thumbs == nil {
		return permanent, "", nil
	}
	thumb, err := p.thumbnail(ctx, key, dl.Data)
	if err != nil {
		log.Warn().Err(err).Int("index", index).Str("stage", "thumbnail").Msg("thumbnail skipped")
		return permanent, "", nil
	}
	return permanent, thumb, nil
}

func (p *Persister) thumbnail(ctx context.Context, key string, data []byte) (string, error) {
	thumbKey, err := storage.ThumbnailKey(key)
	if err != nil {
		return "", err
	}
	encoded, err := p.thumbs.Make(data)
	if err != nil {
		return "", err
	}
	return p.upload(ctx, thumbKey, encoded, ThumbnailContentType)
}

func (p *Persister) upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.uploadTimeout)
	defer cancel()
	return p.store.Upload(ctx, key, data, contentType)
}
