package service

import (
	"archive/zip"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/internal/sol"
	"github.com/custodia-labs/custodia/ports"
)

const (
	// DefaultGenerateWorkers bounds concurrent keypair generation.
	DefaultGenerateWorkers = 4
	// MaxGenerateCount caps one generation job.
	MaxGenerateCount = 1000
)

// GenerateParams controls one wallet-generation job. Delays are per-wallet
// jitter in milliseconds, useful when generation is paired with downstream
// calls that should not burst.
type GenerateParams struct {
	Count      int    `json:"count"`
	NamePrefix string `json:"namePrefix"`
	MinDelayMs int    `json:"minDelayMs"`
	MaxDelayMs int    `json:"maxDelayMs"`
}

// ImportedKeypair is one entry of a solana-keygen style import payload:
// either a bare 64-integer secret key array or an object carrying one.
type ImportedKeypair struct {
	Name      string
	SecretKey []byte
}

// ExportedWallet is the solana-keygen compatible export form of one wallet.
type ExportedWallet struct {
	Name      string `json:"name"`
	PublicKey string `json:"publicKey"`
	SecretKey []int  `json:"secretKey"`
}

// BalanceEntry is one wallet's refreshed balance. Known is false when the
// ledger could not answer; the cached value is left untouched in that case.
type BalanceEntry struct {
	WalletID uuid.UUID
	Address  string
	Lamports uint64
	Known    bool
}

// WalletService manages custodial keypairs: bulk generation with a
// downloadable archive, solana-keygen imports and exports, and cached balance
// refresh against the ledger.
type WalletService struct {
	wallets   ports.WalletStore
	jobs      ports.JobStore
	gateway   ports.LedgerGateway
	exportDir string
	workers   int
	log       zerolog.Logger
}

// NewWalletService creates the wallet service. exportDir is where job
// archives are written.
func NewWalletService(wallets ports.WalletStore, jobs ports.JobStore, gateway ports.LedgerGateway, exportDir string, log zerolog.Logger) *WalletService {
	return &WalletService{
		wallets:   wallets,
		jobs:      jobs,
		gateway:   gateway,
		exportDir: exportDir,
		workers:   DefaultGenerateWorkers,
		log:       log,
	}
}

func newJobID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate job id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func jitter(minMs, maxMs int) time.Duration {
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	span := big.NewInt(int64(maxMs - minMs + 1))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(int64(minMs)+n.Int64()) * time.Millisecond
}

// Generate creates count keypairs under the owner, persists them, and starts
// an asynchronous archive build. The returned job carries a pending archive
// status until the archive is written; callers poll the job to learn when the
// download is ready.
func (s *WalletService) Generate(ctx context.Context, owner string, params GenerateParams) (*core.Job, []core.Wallet, error) {
	if params.Count <= 0 || params.Count > MaxGenerateCount {
		return nil, nil, fmt.Errorf("count must be between 1 and %d", MaxGenerateCount)
	}
	if params.NamePrefix == "" {
		params.NamePrefix = "wallet"
	}
	if params.MinDelayMs < 0 {
		params.MinDelayMs = 0
	}
	if params.MaxDelayMs < params.MinDelayMs {
		params.MaxDelayMs = params.MinDelayMs
	}

	id, err := newJobID()
	if err != nil {
		return nil, nil, err
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode job params: %w", err)
	}
	job := &core.Job{
		ID:            id,
		Owner:         owner,
		Count:         params.Count,
		Params:        string(rawParams),
		ArchiveStatus: core.ArchivePending,
		CreatedAt:     time.Now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("failed to create job: %w", err)
	}

	wallets := make([]core.Wallet, params.Count)
	errs := make([]error, params.Count)
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := 0; i < params.Count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if d := jitter(params.MinDelayMs, params.MaxDelayMs); d > 0 {
				time.Sleep(d)
			}
			kp, err := sol.GenerateKeypair()
			if err != nil {
				errs[i] = err
				return
			}
			wallets[i] = core.Wallet{
				ID:        uuid.New(),
				Owner:     owner,
				PublicKey: kp.Address,
				SecretKey: kp.SecretBase58(),
				Name:      fmt.Sprintf("%s-%d", params.NamePrefix, i+1),
				Source:    core.SourceGenerated,
				CreatedAt: time.Now(),
			}
		}(i)
	}
	wg.Wait()

	created := make([]core.Wallet, 0, params.Count)
	for i := range wallets {
		if errs[i] != nil {
			s.log.Error().Err(errs[i]).Int("index", i).Msg("keypair generation failed")
			continue
		}
		w := wallets[i]
		if err := s.wallets.Create(ctx, &w); err != nil {
			s.log.Error().Err(err).Str("address", w.PublicKey).Msg("wallet create failed")
			continue
		}
		created = append(created, w)
	}

	go s.buildArchive(job.ID, created)

	s.log.Info().
		Str("job", job.ID).
		Str("owner", owner).
		Int("created", len(created)).
		Msg("wallets generated")
	return job, created, nil
}

// buildArchive writes the job's keypairs as a zip of solana-keygen JSON
// files and flips the job's archive status when done.
func (s *WalletService) buildArchive(jobID string, wallets []core.Wallet) {
	ctx := context.Background()

	path, err := s.writeArchive(jobID, wallets)
	if err != nil {
		s.log.Error().Err(err).Str("job", jobID).Msg("archive build failed")
		if uerr := s.jobs.UpdateArchive(ctx, jobID, core.ArchiveFailed, ""); uerr != nil {
			s.log.Error().Err(uerr).Str("job", jobID).Msg("archive status update failed")
		}
		return
	}
	if err := s.jobs.UpdateArchive(ctx, jobID, core.ArchiveDone, path); err != nil {
		s.log.Error().Err(err).Str("job", jobID).Msg("archive status update failed")
	}
}

func (s *WalletService) writeArchive(jobID string, wallets []core.Wallet) (string, error) {
	if err := os.MkdirAll(s.exportDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	path := filepath.Join(s.exportDir, jobID+".zip")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, w := range wallets {
		kp, err := sol.KeypairFromSecretBase58(w.SecretKey)
		if err != nil {
			return "", fmt.Errorf("wallet %s: %w", w.PublicKey, err)
		}
		entry, err := zw.Create(w.Name + ".json")
		if err != nil {
			return "", fmt.Errorf("failed to add archive entry: %w", err)
		}
		secret := kp.SecretBytes()
		ints := make([]int, len(secret))
		for i, b := range secret {
			ints[i] = int(b)
		}
		if err := json.NewEncoder(entry).Encode(ints); err != nil {
			return "", fmt.Errorf("failed to write archive entry: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	return path, nil
}

// ParseImportPayload accepts the formats solana-keygen and common tooling
// produce: a bare 64-integer array, an object with a secret_key array and an
// optional name, or a list mixing both.
func ParseImportPayload(raw []byte) ([]ImportedKeypair, error) {
	var bare []byte
	if err := unmarshalIntBytes(raw, &bare); err == nil {
		return []ImportedKeypair{{SecretKey: bare}}, nil
	}

	var obj struct {
		Name      string          `json:"name"`
		SecretKey json.RawMessage `json:"secret_key"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj.SecretKey) > 0 {
		var key []byte
		if err := unmarshalIntBytes(obj.SecretKey, &key); err != nil {
			return nil, err
		}
		return []ImportedKeypair{{Name: obj.Name, SecretKey: key}}, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("unrecognized import payload")
	}
	out := make([]ImportedKeypair, 0, len(list))
	for i, item := range list {
		entries, err := ParseImportPayload(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, entries...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty import payload")
	}
	return out, nil
}

func unmarshalIntBytes(raw []byte, dst *[]byte) error {
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return err
	}
	buf := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("secret key byte %d out of range", i)
		}
		buf[i] = byte(v)
	}
	*dst = buf
	return nil
}

// Import persists externally generated keypairs under the owner. Entries
// whose public key the owner already holds are skipped, not duplicated;
// entries with invalid secret keys fail the whole import so a typo cannot
// half-apply.
func (s *WalletService) Import(ctx context.Context, owner string, entries []ImportedKeypair) ([]core.Wallet, int, error) {
	created := make([]core.Wallet, 0, len(entries))
	skipped := 0
	for i, entry := range entries {
		kp, err := sol.KeypairFromSecret(entry.SecretKey)
		if err != nil {
			return nil, 0, fmt.Errorf("entry %d: %w", i, err)
		}
		if existing, err := s.wallets.ByOwnerAndAddress(ctx, owner, kp.Address); err == nil && existing != nil {
			skipped++
			continue
		}
		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("imported-%d", i+1)
		}
		w := core.Wallet{
			ID:        uuid.New(),
			Owner:     owner,
			PublicKey: kp.Address,
			SecretKey: kp.SecretBase58(),
			Name:      name,
			Source:    core.SourceImported,
			CreatedAt: time.Now(),
		}
		if err := s.wallets.Create(ctx, &w); err != nil {
			return nil, 0, fmt.Errorf("entry %d: %w", i, err)
		}
		created = append(created, w)
	}
	return created, skipped, nil
}

// Export returns the owner's selected wallets in solana-keygen form. When
// ids is empty every wallet is exported.
func (s *WalletService) Export(ctx context.Context, owner string, ids []uuid.UUID) ([]ExportedWallet, error) {
	var wallets []core.Wallet
	var err error
	if len(ids) == 0 {
		wallets, err = s.wallets.ByOwner(ctx, owner)
	} else {
		wallets, err = s.wallets.ByOwnerAndIDs(ctx, owner, ids)
	}
	if err != nil {
		return nil, err
	}

	out := make([]ExportedWallet, 0, len(wallets))
	for _, w := range wallets {
		kp, err := sol.KeypairFromSecretBase58(w.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("wallet %s: %w", w.PublicKey, err)
		}
		secret := kp.SecretBytes()
		ints := make([]int, len(secret))
		for i, b := range secret {
			ints[i] = int(b)
		}
		out = append(out, ExportedWallet{Name: w.Name, PublicKey: w.PublicKey, SecretKey: ints})
	}
	return out, nil
}

// List returns the owner's wallets, newest first.
func (s *WalletService) List(ctx context.Context, owner string) ([]core.Wallet, error) {
	return s.wallets.ByOwner(ctx, owner)
}

// RefreshBalances queries the ledger for the selected wallets with bounded
// fan-out and updates the cached balances that could be read. A wallet whose
// balance the ledger cannot report keeps its previous cache; the entry is
// returned with Known false so callers can tell fresh zero from unknown.
func (s *WalletService) RefreshBalances(ctx context.Context, owner string, ids []uuid.UUID) ([]BalanceEntry, error) {
	var wallets []core.Wallet
	var err error
	if len(ids) == 0 {
		wallets, err = s.wallets.ByOwner(ctx, owner)
	} else {
		wallets, err = s.wallets.ByOwnerAndIDs(ctx, owner, ids)
	}
	if err != nil {
		return nil, err
	}

	entries := make([]BalanceEntry, len(wallets))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := range wallets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			w := wallets[i]
			lamports, ok := s.gateway.Balance(ctx, w.PublicKey)
			entries[i] = BalanceEntry{WalletID: w.ID, Address: w.PublicKey, Lamports: lamports, Known: ok}
			if ok {
				if err := s.wallets.UpdateBalance(ctx, w.ID, lamports, time.Now()); err != nil {
					s.log.Warn().Err(err).Str("address", w.PublicKey).Msg("balance cache update failed")
				}
			}
		}(i)
	}
	wg.Wait()
	return entries, nil
}

// Rename changes a wallet's display name.
func (s *WalletService) Rename(ctx context.Context, owner string, id uuid.UUID, name string) (*core.Wallet, error) {
	if name == "" {
		return nil, fmt.Errorf("name must not be empty")
	}
	return s.wallets.Rename(ctx, owner, id, name)
}

// Delete removes the owner's selected wallets and reports how many existed.
func (s *WalletService) Delete(ctx context.Context, owner string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("no wallet ids given")
	}
	return s.wallets.Delete(ctx, owner, ids)
}

// Jobs lists the owner's generation jobs.
func (s *WalletService) Jobs(ctx context.Context, owner string) ([]core.Job, error) {
	return s.jobs.ByOwner(ctx, owner)
}

// Job returns one generation job, including its archive status and path.
func (s *WalletService) Job(ctx context.Context, owner, id string) (*core.Job, error) {
	return s.jobs.Get(ctx, owner, id)
}
