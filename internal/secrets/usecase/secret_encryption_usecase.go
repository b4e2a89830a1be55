package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"

	"github.com/bizmatters/zerotouch-keys/internal/fsutil"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysUsecase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
	"github.com/bizmatters/zerotouch-keys/internal/mapping"
	secretsDomain "github.com/bizmatters/zerotouch-keys/internal/secrets/domain"
	secretsService "github.com/bizmatters/zerotouch-keys/internal/secrets/service"
)

// secretEncryptionUseCase implements SecretEncryptionUseCase over a local
// output directory holding one subdirectory per environment.
type secretEncryptionUseCase struct {
	keys           KeyProvider
	classifier     Classifier
	codec          secretsService.ArtifactCodec
	outputDir      string
	encryptedRegex string
	parallelism    int
	logger         *slog.Logger
}

// NewSecretEncryptionUseCase creates a SecretEncryptionUseCase writing under outputDir.
// encryptedRegex is recorded in every artifact trailer; parallelism bounds
// RegenerateAll (zero or less means one worker per environment).
func NewSecretEncryptionUseCase(
	keys KeyProvider,
	classifier Classifier,
	codec secretsService.ArtifactCodec,
	outputDir string,
	encryptedRegex string,
	parallelism int,
	logger *slog.Logger,
) SecretEncryptionUseCase {
	return &secretEncryptionUseCase{
		keys:           keys,
		classifier:     classifier,
		codec:          codec,
		outputDir:      outputDir,
		encryptedRegex: encryptedRegex,
		parallelism:    parallelism,
		logger:         logger,
	}
}

func (s *secretEncryptionUseCase) envDir(env keysDomain.Environment) string {
	return filepath.Join(s.outputDir, string(env))
}

// Regenerate renders the whole artifact set into a staging directory and
// swaps it with the environment directory. Removed source values therefore
// never leave stale ciphertext behind.
func (s *secretEncryptionUseCase) Regenerate(
	ctx context.Context,
	env keysDomain.Environment,
	values []mapping.SourceValue,
) (*RegenerateResult, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	recipient, err := s.keys.PublicKey(ctx, env)
	if err != nil {
		return nil, err
	}

	classified, err := s.classifier.Classify(values, env)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.outputDir, err)
	}
	staging, err := os.MkdirTemp(s.outputDir, "."+string(env)+".staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging) //nolint:errcheck

	envNamespace := s.classifier.Namespace(env)
	files := make([]string, 0, len(classified.Records))
	for _, rec := range classified.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		file := secretsDomain.ArtifactFile(rec.Name, rec.Namespace, envNamespace)
		data, err := s.codec.Encode(rec, recipient, s.encryptedRegex)
		if err != nil {
			return nil, err
		}
		if err := fsutil.WriteFileAtomic(filepath.Join(staging, filepath.FromSlash(file)), data, 0o644); err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	manifest := secretsDomain.NewGeneratorManifest(string(env), files)
	if err := writeYAML(filepath.Join(staging, secretsDomain.GeneratorFile), manifest); err != nil {
		return nil, err
	}
	if err := writeYAML(filepath.Join(staging, secretsDomain.KustomizationFile), secretsDomain.NewKustomization()); err != nil {
		return nil, err
	}

	if err := fsutil.SwapDir(staging, s.envDir(env)); err != nil {
		return nil, err
	}

	s.logger.Info("secrets regenerated",
		slog.String("environment", env.String()),
		slog.String("recipient", recipient),
		slog.String("dir", s.envDir(env)),
		slog.Int("artifacts", len(manifest.Files)),
		slog.Int("rejected", len(classified.Rejections)),
	)

	return &RegenerateResult{
		Environment: env,
		Recipient:   recipient,
		Dir:         s.envDir(env),
		Files:       manifest.Files,
		Rejections:  classified.Rejections,
	}, nil
}

func (s *secretEncryptionUseCase) RegenerateAll(
	ctx context.Context,
	envs []keysDomain.Environment,
	values []mapping.SourceValue,
) ([]*RegenerateResult, error) {
	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	results := make([]*RegenerateResult, len(envs))

	var g errgroup.Group
	if s.parallelism > 0 {
		g.SetLimit(s.parallelism)
	}
	for i, env := range envs {
		g.Go(func() error {
			res, err := s.Regenerate(ctx, env, values)
			if err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("%s: %w", env, err))
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	done := make([]*RegenerateResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			done = append(done, res)
		}
	}
	return done, result.ErrorOrNil()
}

func (s *secretEncryptionUseCase) Decrypt(
	ctx context.Context,
	artifact, identity []byte,
) (*mapping.SecretRecord, error) {
	return s.codec.Decrypt(artifact, identity)
}

func (s *secretEncryptionUseCase) Verify(ctx context.Context, env keysDomain.Environment) (*VerifyResult, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	dir := s.envDir(env)
	data, err := os.ReadFile(filepath.Join(dir, secretsDomain.GeneratorFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", env, secretsDomain.ErrManifestNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest secretsDomain.GeneratorManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%s: %w: manifest: %w", env, secretsDomain.ErrVerificationFailed, err)
	}

	pair, err := s.keys.EnsureKeyPair(ctx, env, keysUsecase.EnsureOptions{})
	if err != nil {
		return nil, err
	}
	defer pair.Zero()

	var problems *multierror.Error
	listed := make(map[string]bool, len(manifest.Files))
	for _, file := range manifest.Files {
		listed[file] = true
		if err := s.verifyArtifact(filepath.Join(dir, filepath.FromSlash(file)), pair); err != nil {
			problems = multierror.Append(problems, fmt.Errorf("%s: %w", file, err))
		}
	}

	present, err := listArtifacts(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range present {
		if !listed[file] {
			problems = multierror.Append(problems, fmt.Errorf("%s: not listed in %s", file, secretsDomain.GeneratorFile))
		}
	}

	if err := problems.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", env, secretsDomain.ErrVerificationFailed, err)
	}

	s.logger.Info("secrets verified",
		slog.String("environment", env.String()),
		slog.String("recipient", pair.PublicKey),
		slog.Int("artifacts", len(manifest.Files)),
	)
	return &VerifyResult{Environment: env, Recipient: pair.PublicKey, Files: manifest.Files}, nil
}

func (s *secretEncryptionUseCase) verifyArtifact(path string, pair *keysDomain.KeyPair) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	artifact, err := s.codec.Parse(data)
	if err != nil {
		return err
	}
	if artifact.Encryption.Recipient != pair.PublicKey {
		return fmt.Errorf("encrypted to %s, active recipient is %s", artifact.Encryption.Recipient, pair.PublicKey)
	}
	_, err = s.codec.Decrypt(data, pair.PrivateKey)
	return err
}

// listArtifacts returns the artifact files under dir relative to it, slash separated.
func listArtifacts(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), secretsDomain.ArtifactExt) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", filepath.Base(path), err)
	}
	return fsutil.WriteFileAtomic(path, data, 0o644)
}
