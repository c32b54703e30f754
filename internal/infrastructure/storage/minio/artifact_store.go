package minio

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/minio/minio-go/v7"
	"golang.org/x/sync/errgroup"

	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

const transferConcurrency = 4

// SyncResult lists the artifacts a Pull or Push touched, sorted by name.
type SyncResult struct {
	Transferred []string
	Skipped     []string
}

// ArtifactStore mirrors the model artifact bundle between a bucket prefix and
// a local directory.
type ArtifactStore struct {
	client *Client
	logger logging.Logger
}

// NewArtifactStore creates an ArtifactStore.
func NewArtifactStore(client *Client, log logging.Logger) *ArtifactStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ArtifactStore{client: client, logger: log.Named("artifact-store")}
}

func bundleFiles() []string {
	return append(append([]string(nil), triage_model.RequiredFiles...), triage_model.FileCanonicalEmbeddings)
}

func isRequired(name string) bool {
	for _, f := range triage_model.RequiredFiles {
		if f == name {
			return true
		}
	}
	return false
}

// Pull downloads the bundle into dir.  Local files whose size matches and
// that are not older than the remote object are kept.  Every required
// artifact must exist remotely; the canonical embeddings are optional.
func (s *ArtifactStore) Pull(ctx context.Context, dir string) (*SyncResult, error) {
	remote, err := s.listRemote(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range triage_model.RequiredFiles {
		if _, ok := remote[name]; !ok {
			return nil, errors.New(errors.ErrCodeArtifactMissing, "artifact not found in bucket").
				WithDetail(s.client.Bucket() + "/" + s.client.ObjectKey(name))
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "create artifact directory").WithDetail(dir)
	}

	res := &SyncResult{}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transferConcurrency)

	for _, name := range bundleFiles() {
		obj, ok := remote[name]
		if !ok {
			continue
		}
		name, obj := name, obj
		local := filepath.Join(dir, name)
		if upToDate(local, obj) {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		g.Go(func() error {
			if err := s.client.api.FGetObject(gctx, s.client.Bucket(), obj.Key, local, minio.GetObjectOptions{}); err != nil {
				return errors.Wrap(err, errors.ErrCodeStorageError, "download artifact").WithDetail(obj.Key)
			}
			if !obj.LastModified.IsZero() {
				_ = os.Chtimes(local, obj.LastModified, obj.LastModified)
			}
			mu.Lock()
			res.Transferred = append(res.Transferred, name)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(res.Transferred)
	sort.Strings(res.Skipped)
	s.logger.Info("artifact bundle pulled",
		logging.String("bucket", s.client.Bucket()),
		logging.String("dir", dir),
		logging.Int("downloaded", len(res.Transferred)),
		logging.Int("up_to_date", len(res.Skipped)))
	return res, nil
}

// Push uploads the bundle in dir.  Every required artifact must exist
// locally.
func (s *ArtifactStore) Push(ctx context.Context, dir string) (*SyncResult, error) {
	res := &SyncResult{}
	var upload []string
	for _, name := range bundleFiles() {
		local := filepath.Join(dir, name)
		if _, err := os.Stat(local); err != nil {
			if isRequired(name) {
				return nil, errors.New(errors.ErrCodeArtifactMissing, "artifact not found").WithDetail(local)
			}
			res.Skipped = append(res.Skipped, name)
			continue
		}
		upload = append(upload, name)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transferConcurrency)
	for _, name := range upload {
		name := name
		local := filepath.Join(dir, name)
		g.Go(func() error {
			key := s.client.ObjectKey(name)
			_, err := s.client.api.FPutObject(gctx, s.client.Bucket(), key, local,
				minio.PutObjectOptions{ContentType: "application/json"})
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeStorageError, "upload artifact").WithDetail(key)
			}
			mu.Lock()
			res.Transferred = append(res.Transferred, name)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(res.Transferred)
	s.logger.Info("artifact bundle pushed",
		logging.String("bucket", s.client.Bucket()),
		logging.String("prefix", s.client.listPrefix()),
		logging.Int("uploaded", len(res.Transferred)))
	return res, nil
}

// listRemote returns the objects directly under the prefix keyed by base
// name.
func (s *ArtifactStore) listRemote(ctx context.Context) (map[string]minio.ObjectInfo, error) {
	out := make(map[string]minio.ObjectInfo)
	prefix := s.client.listPrefix()
	for obj := range s.client.api.ListObjects(ctx, s.client.Bucket(), minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "list artifacts").WithDetail(s.client.Bucket())
		}
		name := path.Base(obj.Key)
		if prefix+name != obj.Key {
			continue
		}
		out[name] = obj
	}
	return out, nil
}

func upToDate(local string, obj minio.ObjectInfo) bool {
	fi, err := os.Stat(local)
	if err != nil {
		return false
	}
	return fi.Size() == obj.Size && !fi.ModTime().Before(obj.LastModified)
}
